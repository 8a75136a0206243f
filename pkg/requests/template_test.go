package requests

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTemplate(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"no placeholders", "https://chat.googleapis.com/v1/spaces", "https://chat.googleapis.com/v1/spaces"},
		{"simple placeholder", "v1/{name}", "v1/{name}"},
		{"reserved expansion", "v1/{+parent}/messages", "v1/{parent}/messages"},
		{"dotted name", "v4/spreadsheets/{spreadsheetId}/values/{range.start}", "v4/spreadsheets/{spreadsheetId}/values/{range_start}"},
		{"multiple dots", "{+a.b.c}", "{a_b_c}"},
		{"unterminated brace is kept", "v1/{name", "v1/{name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToTemplate(tt.path))
		})
	}
}

func TestInterpolate(t *testing.T) {
	got, err := Interpolate(ToTemplate("https://chat.googleapis.com/v1/{+parent}/members/{member.id}"), map[string]string{
		"parent":    "spaces/AAAA",
		"member_id": "42",
		"unused":    "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://chat.googleapis.com/v1/spaces/AAAA/members/42", got)
}

func TestInterpolate_ValuesAreNotEncoded(t *testing.T) {
	got, err := Interpolate("v1/{name}", map[string]string{"name": "spaces/a b"})
	require.NoError(t, err)
	assert.Equal(t, "v1/spaces/a b", got)
}

func TestInterpolate_EachPlaceholderOnce(t *testing.T) {
	got, err := Interpolate("{a}/{b}/{a}", map[string]string{"a": "{b}", "b": "x"})
	require.NoError(t, err)
	// Substituted values are never re-expanded
	assert.Equal(t, "{b}/x/{b}", got)
}

func TestInterpolate_MissingValue(t *testing.T) {
	_, err := Interpolate("v1/{parent}/messages/{name}", map[string]string{"parent": "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingInterpolationValue))
	assert.Contains(t, err.Error(), `"name"`)
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("https://x/{+a.b}/c/{d}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b", "d"}, tmpl.Names())
	assert.Equal(t, "https://x/{a_b}/c/{d}", tmpl.String())

	_, err = ParseTemplate("v1/{name")
	assert.True(t, errors.Is(err, ErrIllegalArgument))

	_, err = ParseTemplate("v1/{}")
	assert.True(t, errors.Is(err, ErrIllegalArgument))
}
