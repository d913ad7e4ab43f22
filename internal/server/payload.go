package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"libris/internal/models"
	"libris/internal/storage"

	"github.com/gofiber/fiber/v2"
)

const (
	msgInvalidString  = "Not a valid string."
	msgInvalidInteger = "A valid integer is required."
	msgInvalidBoolean = "Must be a valid boolean."
	msgInvalidDate    = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	msgInvalidList    = "Expected a list of ids."
	msgNotNull        = "This field may not be null."
)

// payload is a request body decoded from JSON, urlencoded or multipart form
// data. Getters return nil for absent keys and record type errors per field.
type payload struct {
	json  map[string]json.RawMessage
	form  map[string][]string
	files map[string][]*multipart.FileHeader
	errs  models.FieldErrors
}

// bindPayload decodes the request body according to its content type. An
// empty body yields an empty payload.
func bindPayload(c *fiber.Ctx) (*payload, error) {
	p := &payload{
		form: map[string][]string{},
		errs: models.FieldErrors{},
	}

	contentType := strings.ToLower(string(c.Request().Header.ContentType()))
	switch {
	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		body := bytes.TrimSpace(c.Body())
		if len(body) == 0 {
			return p, nil
		}
		if err := json.Unmarshal(body, &p.json); err != nil || p.json == nil {
			return nil, models.NewValidationError("JSON parse error: request body must be an object.")
		}
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("Multipart form parse error: %v", err))
		}
		p.form = form.Value
		p.files = form.File
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			p.form[string(key)] = append(p.form[string(key)], string(value))
		})
	case len(c.Body()) == 0:
	default:
		return nil, models.NewValidationError(fmt.Sprintf("Unsupported media type %q in request.", contentType))
	}
	return p, nil
}

// Err returns the accumulated type errors.
func (p *payload) Err() error {
	return p.errs.Err()
}

func (p *payload) raw(key string) (json.RawMessage, bool) {
	if p.json == nil {
		return nil, false
	}
	v, ok := p.json[key]
	return v, ok
}

func (p *payload) formValue(key string) (string, bool) {
	values, ok := p.form[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// String reads a text field. JSON null is treated as an empty string.
func (p *payload) String(key string) *string {
	if raw, ok := p.raw(key); ok {
		if isNull(raw) {
			empty := ""
			return &empty
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			p.errs.Add(key, msgInvalidString)
			return nil
		}
		return &s
	}
	if v, ok := p.formValue(key); ok {
		return &v
	}
	return nil
}

// Text is String with absent keys read as "".
func (p *payload) Text(key string) string {
	if v := p.String(key); v != nil {
		return *v
	}
	return ""
}

// Int reads an integer field. JSON numbers and numeric strings are accepted.
func (p *payload) Int(key string) *int {
	v := p.Int64(key)
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func (p *payload) Int64(key string) *int64 {
	var text string
	if raw, ok := p.raw(key); ok {
		if isNull(raw) {
			p.errs.Add(key, msgNotNull)
			return nil
		}
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			p.errs.Add(key, msgInvalidInteger)
			return nil
		}
		text = num.String()
	} else if v, ok := p.formValue(key); ok {
		text = strings.TrimSpace(v)
	} else {
		return nil
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		p.errs.Add(key, msgInvalidInteger)
		return nil
	}
	return &n
}

// Bool reads a flag. Form values accept the usual checkbox spellings.
func (p *payload) Bool(key string) *bool {
	if raw, ok := p.raw(key); ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return &b
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if v, ok := parseBool(s); ok {
				return &v
			}
		}
		p.errs.Add(key, msgInvalidBoolean)
		return nil
	}
	if v, ok := p.formValue(key); ok {
		b, ok := parseBool(v)
		if !ok {
			p.errs.Add(key, msgInvalidBoolean)
			return nil
		}
		return &b
	}
	return nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes", "y", "t":
		return true, true
	case "false", "0", "off", "no", "n", "f", "":
		return false, true
	}
	return false, false
}

// UintList reads a list of ids. Forms repeat the key once per value; JSON
// null clears the list.
func (p *payload) UintList(key string) *[]uint {
	var items []string
	if raw, ok := p.raw(key); ok {
		if isNull(raw) {
			empty := []uint{}
			return &empty
		}
		var nums []json.Number
		if err := json.Unmarshal(raw, &nums); err != nil {
			p.errs.Add(key, msgInvalidList)
			return nil
		}
		for _, n := range nums {
			items = append(items, n.String())
		}
	} else if values, ok := p.form[key]; ok {
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				items = append(items, v)
			}
		}
	} else {
		return nil
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseUint(item, 10, 64)
		if err != nil || id == 0 {
			p.errs.Add(key, fmt.Sprintf("Invalid pk %q - object does not exist.", item))
			return nil
		}
		ids = append(ids, uint(id))
	}
	return &ids
}

// Date reads a YYYY-MM-DD value. Null or an empty string clears the field,
// which is why the result is a pointer to a nullable time.
func (p *payload) Date(key string) **time.Time {
	var text string
	if raw, ok := p.raw(key); ok {
		if isNull(raw) {
			var cleared *time.Time
			return &cleared
		}
		if err := json.Unmarshal(raw, &text); err != nil {
			p.errs.Add(key, msgInvalidDate)
			return nil
		}
	} else if v, ok := p.formValue(key); ok {
		text = v
	} else {
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		var cleared *time.Time
		return &cleared
	}
	t, err := time.Parse(time.DateOnly, text)
	if err != nil {
		p.errs.Add(key, msgInvalidDate)
		return nil
	}
	date := &t
	return &date
}

// File reads an uploaded file. It returns nil when key carries no upload.
func (p *payload) File(key string) *storage.Upload {
	headers := p.files[key]
	if len(headers) == 0 {
		return nil
	}
	fh := headers[0]

	f, err := fh.Open()
	if err != nil {
		p.errs.Add(key, "The submitted data was not a file.")
		return nil
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		p.errs.Add(key, "The submitted data was not a file.")
		return nil
	}
	return &storage.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}
}
