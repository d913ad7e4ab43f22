package storage

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"libris/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedia_SaveImage(t *testing.T) {
	root := t.TempDir()
	m := NewMedia(root, "/media", 1, 100)

	t.Run("stores small image as is", func(t *testing.T) {
		content := testutil.PNG(t, 20, 10)
		rel, err := m.SaveImage(BookCoversDir, Upload{Filename: "cover.png", Content: content})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(rel, "books/covers/"))
		assert.True(t, strings.HasSuffix(rel, ".png"))

		stored, err := os.ReadFile(filepath.Join(root, rel))
		require.NoError(t, err)
		assert.Equal(t, content, stored)
	})

	t.Run("downscales oversized image", func(t *testing.T) {
		rel, err := m.SaveImage(UserAvatarsDir, Upload{Filename: "big.png", Content: testutil.PNG(t, 400, 200)})
		require.NoError(t, err)

		stored, err := os.ReadFile(filepath.Join(root, rel))
		require.NoError(t, err)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(stored))
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	})

	t.Run("rejects non images", func(t *testing.T) {
		_, err := m.SaveImage(NewsImagesDir, Upload{Filename: "notes.txt", Content: []byte("plain text body")})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("rejects empty uploads", func(t *testing.T) {
		_, err := m.SaveImage(NewsImagesDir, Upload{Filename: "empty.png"})
		assert.ErrorIs(t, err, ErrEmptyUpload)
	})

	t.Run("rejects huge declared dimensions", func(t *testing.T) {
		content := testutil.PNG(t, 4, 4)
		// Rewrite the IHDR width and height to 50000x50000 and fix its CRC.
		binary.BigEndian.PutUint32(content[16:20], 50000)
		binary.BigEndian.PutUint32(content[20:24], 50000)
		binary.BigEndian.PutUint32(content[29:33], crc32.ChecksumIEEE(content[12:29]))

		_, err := m.SaveImage(NewsImagesDir, Upload{Filename: "bomb.png", Content: content})
		assert.ErrorIs(t, err, ErrImageTooLarge)
	})

	t.Run("rejects oversized uploads", func(t *testing.T) {
		_, err := m.SaveImage(NewsImagesDir, Upload{Filename: "huge.png", Content: make([]byte, 2*1024*1024)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})
}

func TestMedia_Delete(t *testing.T) {
	root := t.TempDir()
	m := NewMedia(root, "/media/", 1, 0)

	rel, err := m.SaveImage(BookCoversDir, Upload{Content: testutil.PNG(t, 4, 4)})
	require.NoError(t, err)

	require.NoError(t, m.Delete(rel))
	_, err = os.Stat(filepath.Join(root, rel))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, m.Delete(rel), "missing files are ignored")
	assert.NoError(t, m.Delete(""))
	assert.Error(t, m.Delete("../outside.png"))
}

func TestMedia_URL(t *testing.T) {
	m := NewMedia(t.TempDir(), "/media/", 1, 0)

	assert.Nil(t, m.URL("http://example.com", ""))
	assert.Equal(t, "http://example.com/media/books/covers/a.png", *m.URL("http://example.com", "books/covers/a.png"))
	assert.Equal(t, "/media/books/covers/a.png", *m.URL("", "books/covers/a.png"))

	cdn := NewMedia(t.TempDir(), "https://cdn.example.com/m/", 1, 0)
	assert.Equal(t, "https://cdn.example.com/m/a.png", *cdn.URL("http://example.com", "a.png"))
}
