package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title    string   `json:"title" validate:"required,max=10"`
	Color    string   `json:"color" validate:"omitempty,hexcolor"`
	Status   string   `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Progress int      `json:"progress" validate:"min=0,max=100"`
	Emails   []string `json:"emails" validate:"dive,email"`
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestDecode_Valid(t *testing.T) {
	var s sample
	err := Decode(strings.NewReader(`{"title":"Fix bug","color":"#3b82f6","status":"todo","progress":40}`), &s)
	require.NoError(t, err)
	assert.Equal(t, "Fix bug", s.Title)
	assert.Equal(t, 40, s.Progress)
}

func TestDecode_FieldErrorsUseJSONNames(t *testing.T) {
	var s sample
	err := Decode(strings.NewReader(`{"color":"blue","status":"blocked","progress":150,"emails":["nope"]}`), &s)

	f := fields(t, err)
	assert.Equal(t, "is required", f["title"])
	assert.Equal(t, "must be a hex color such as #3b82f6", f["color"])
	assert.Equal(t, "must be one of: todo, in_progress, done", f["status"])
	assert.Equal(t, "must be at most 100", f["progress"])
	assert.Equal(t, "must be a valid email address", f["emails[0]"])
}

func TestDecode_StringLength(t *testing.T) {
	var s sample
	f := fields(t, Decode(strings.NewReader(`{"title":"much too long a title"}`), &s))
	assert.Equal(t, "must be at most 10 characters", f["title"])
}

func TestDecode_MalformedBody(t *testing.T) {
	var s sample

	f := fields(t, Decode(strings.NewReader(`{"title":`), &s))
	assert.Contains(t, f, "body")

	f = fields(t, Decode(strings.NewReader(``), &s))
	assert.Equal(t, "request body is required", f["body"])

	f = fields(t, Decode(strings.NewReader(`{"title":5}`), &s))
	assert.Equal(t, "should be string", f["title"])
}

func TestEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"user.name+tag@example.co.uk", true},
		{"", false},
		{"invalid", false},
		{"@example.com", false},
		{strings.Repeat("a", 250) + "@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, Email(tt.email))
		})
	}
}

type note struct {
	Text string `json:"text" validate:"required"`
}

func (n *note) Sanitize() { n.Text = SanitizeString(n.Text) }

func TestDecode_SanitizesBeforeValidating(t *testing.T) {
	var n note
	require.NoError(t, Decode(strings.NewReader(`{"text":" ok\u0000 then\u0007 "}`), &n))
	assert.Equal(t, "ok then", n.Text)

	n = note{}
	f := fields(t, Decode(strings.NewReader(`{"text":"\u0000\u0007  "}`), &n))
	assert.Equal(t, "is required", f["text"])
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("  hello\x00 world\x07 "))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2"))
}
