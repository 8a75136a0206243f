package requests

import (
	"fmt"
	"strings"
)

// Template is a parsed URL template made of literal and placeholder tokens.
type Template struct {
	tokens []templateToken
}

type templateToken struct {
	literal     string
	placeholder string // non-empty for placeholder tokens
}

// ToTemplate rewrites discovery-style placeholders ({name} and {+name}) into
// the canonical {name} form, replacing every "." in a name with "_".
// Malformed braces are left untouched.
func ToTemplate(path string) string {
	var b strings.Builder
	b.Grow(len(path))

	for i := 0; i < len(path); {
		if path[i] != '{' {
			b.WriteByte(path[i])
			i++
			continue
		}

		end := strings.IndexByte(path[i:], '}')
		if end < 0 {
			b.WriteString(path[i:])
			break
		}

		name := placeholderName(path[i+1 : i+end])
		b.WriteString("{" + name + "}")
		i += end + 1
	}

	return b.String()
}

// ParseTemplate splits s into literal and placeholder tokens. Placeholder
// names are normalized the same way ToTemplate does.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{}

	for len(s) > 0 {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			t.tokens = append(t.tokens, templateToken{literal: s})
			break
		}
		if start > 0 {
			t.tokens = append(t.tokens, templateToken{literal: s[:start]})
		}

		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return nil, newError("ParseTemplate", ErrIllegalArgument,
				"unterminated placeholder in %q", s)
		}

		name := placeholderName(s[start+1 : start+end])
		if name == "" {
			return nil, newError("ParseTemplate", ErrIllegalArgument,
				"empty placeholder in %q", s)
		}
		t.tokens = append(t.tokens, templateToken{placeholder: name})
		s = s[start+end+1:]
	}

	return t, nil
}

// Names returns the placeholder names in order of appearance.
func (t *Template) Names() []string {
	var names []string
	for _, tok := range t.tokens {
		if tok.placeholder != "" {
			names = append(names, tok.placeholder)
		}
	}
	return names
}

// Expand substitutes every placeholder with its raw value. Values are not
// re-encoded. Unused values are ignored.
func (t *Template) Expand(values map[string]string) (string, error) {
	var b strings.Builder
	for _, tok := range t.tokens {
		if tok.placeholder == "" {
			b.WriteString(tok.literal)
			continue
		}
		v, ok := values[tok.placeholder]
		if !ok {
			return "", &Error{
				Op:  "Interpolate",
				Err: ErrMissingInterpolationValue,
				Msg: fmt.Sprintf("no value for placeholder %q", tok.placeholder),
			}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// String renders the template back in canonical {name} form.
func (t *Template) String() string {
	var b strings.Builder
	for _, tok := range t.tokens {
		if tok.placeholder != "" {
			b.WriteString("{" + tok.placeholder + "}")
		} else {
			b.WriteString(tok.literal)
		}
	}
	return b.String()
}

// Interpolate parses template and expands it with values.
func Interpolate(template string, values map[string]string) (string, error) {
	t, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	return t.Expand(values)
}

// placeholderName strips reserved-expansion markers and makes dotted names
// valid identifiers.
func placeholderName(raw string) string {
	return strings.ReplaceAll(strings.TrimLeft(raw, "+"), ".", "_")
}
