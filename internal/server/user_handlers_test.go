package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"libris/internal/models"
	"libris/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersMe(t *testing.T) {
	env := newTestEnv(t, false)
	me := env.register("selma")
	other := env.register("tariq")

	resp := env.json(http.MethodGet, "/api/users/me/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.json(http.MethodGet, "/api/users/me/", me.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "selma", decode[userResponse](t, resp).Username)

	resp = env.json(http.MethodGet, fmt.Sprintf("/api/users/%d/", me.ID), me.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Other accounts are invisible to non-staff.
	resp = env.json(http.MethodGet, fmt.Sprintf("/api/users/%d/", other.ID), me.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.json(http.MethodPatch, "/api/users/me/", me.Token, map[string]any{
		"bio":        "Reads everything.",
		"birth_date": "1985-02-03",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[userResponse](t, resp)
	assert.Equal(t, "Reads everything.", updated.Bio)
	require.NotNil(t, updated.BirthDate)
	assert.Equal(t, "1985-02-03", *updated.BirthDate)

	resp = env.json(http.MethodPatch, "/api/users/me/", me.Token, map[string]any{"birth_date": nil})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[userResponse](t, resp).BirthDate)

	resp = env.json(http.MethodPatch, "/api/users/me/", me.Token, map[string]any{"username": "tariq"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[models.ErrorResponse](t, resp).Fields, "username")

	resp = env.json(http.MethodPut, "/api/users/me/", me.Token, map[string]any{"bio": "only bio"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields := decode[models.ErrorResponse](t, resp).Fields
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "username")

	resp = env.json(http.MethodGet, "/api/users/", me.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = env.json(http.MethodDelete, fmt.Sprintf("/api/users/%d/", other.ID), me.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAvatarUpload(t *testing.T) {
	env := newTestEnv(t, false)
	me := env.register("painter")

	body, contentType := testutil.Multipart(t, map[string][]string{"first_name": {"Frida"}},
		testutil.MultipartFile{Field: "avatar", Filename: "me.png", Content: testutil.PNG(t, 8, 8)})
	resp := env.do(request{method: http.MethodPatch, path: "/api/users/me/", body: body, contentType: contentType, token: me.Token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode[userResponse](t, resp)
	assert.Equal(t, "Frida", user.FirstName)
	require.NotNil(t, user.Avatar)
	assert.True(t, strings.HasPrefix(*user.Avatar, "users/avatars/"))
	require.NotNil(t, user.AvatarURL)
	assert.Equal(t, "http://example.com/media/"+*user.Avatar, *user.AvatarURL)
}

func TestStaffManagesUsers(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.register("root")
	env.makeStaff(admin.ID, true)
	member := env.register("member")

	resp := env.json(http.MethodGet, "/api/users/", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, decode[map[string]any](t, resp)["count"])

	resp = env.json(http.MethodGet, fmt.Sprintf("/api/users/%d/", member.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.json(http.MethodPost, "/api/users/", admin.Token, map[string]any{
		"email":    "clerk@example.com",
		"username": "clerk",
		"password": testPassword,
		"is_staff": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	clerk := decode[userResponse](t, resp)
	assert.True(t, clerk.IsStaff)

	resp = env.json(http.MethodDelete, fmt.Sprintf("/api/users/%d/", admin.ID), admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.json(http.MethodDelete, fmt.Sprintf("/api/users/%d/", clerk.ID), admin.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.json(http.MethodGet, "/api/users/me/x/", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.register("warden")
	env.makeStaff(admin.ID, true)
	member := env.register("guest")

	promote := fmt.Sprintf("/api/admin/users/%d/promote/", member.ID)

	resp := env.json(http.MethodPost, promote, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.json(http.MethodPost, promote, member.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.json(http.MethodPost, promote, admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[userResponse](t, resp).IsStaff)

	resp = env.json(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/demote/", member.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[userResponse](t, resp).IsStaff)

	resp = env.json(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/demote/", admin.ID), admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.json(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/deactivate/", member.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[userResponse](t, resp).IsActive)

	// Deactivation revokes the token and blocks login.
	resp = env.json(http.MethodGet, "/api/users/me/", member.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.json(http.MethodPost, "/api/login/", "", map[string]any{"email": "guest@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.json(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/activate/", member.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.json(http.MethodPost, "/api/login/", "", map[string]any{"email": "guest@example.com", "password": testPassword})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.json(http.MethodPost, "/api/admin/users/777/promote/", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.json(http.MethodPost, "/api/admin/users/abc/promote/", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminEndpointsProtectSuperusers(t *testing.T) {
	env := newTestEnv(t, false)
	root := env.register("keeper")
	env.makeStaff(root.ID, true)
	clerk := env.register("clerk")
	env.makeStaff(clerk.ID, false)

	for _, action := range []string{"demote", "deactivate", "promote"} {
		resp := env.json(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/%s/", root.ID, action), clerk.Token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, action)
	}

	var stored models.User
	require.NoError(t, env.db.First(&stored, root.ID).Error)
	assert.True(t, stored.IsSuperuser)
	assert.True(t, stored.IsStaff)
	assert.True(t, stored.IsActive)

	// A superuser may still manage plain staff.
	resp := env.json(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/demote/", clerk.ID), root.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[userResponse](t, resp).IsStaff)
}

func TestFeatureFlagEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.register("flagger")
	env.makeStaff(admin.ID, false)

	type flags struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}

	resp := env.json(http.MethodGet, "/api/admin/feature-flags/", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[flags](t, resp)
	assert.Equal(t, "on", got.Raw["html_forms"])
	assert.True(t, got.Evaluated["html_forms"])

	resp = env.json(http.MethodPut, "/api/admin/feature-flags/html_forms/", admin.Token, map[string]any{"value": "maybe"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[models.ErrorResponse](t, resp).Fields, "value")

	resp = env.json(http.MethodPut, "/api/admin/feature-flags/html_forms/", admin.Token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.json(http.MethodPut, "/api/admin/feature-flags/html_forms/", admin.Token, map[string]any{"value": "off"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[flags](t, resp)
	assert.Equal(t, "off", got.Raw["html_forms"])
	assert.False(t, got.Evaluated["html_forms"])

	resp = env.do(request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
