package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// TransformKind names one of the supported portal value transforms.
type TransformKind string

const (
	TransformTrim            TransformKind = "trim"
	TransformStripWhitespace TransformKind = "stripWhitespace"
	TransformUppercase       TransformKind = "uppercase"
	TransformLowercase       TransformKind = "lowercase"
	TransformDateFormat      TransformKind = "dateFormat"
	TransformEnumRelabel     TransformKind = "enumRelabel"
)

// TransformSpec is a closed tagged variant describing how an internal value is
// reshaped for a portal. From/To apply to dateFormat, Table to enumRelabel.
type TransformSpec struct {
	Kind  TransformKind     `json:"kind" yaml:"kind"`
	From  string            `json:"from,omitempty" yaml:"from,omitempty"`
	To    string            `json:"to,omitempty" yaml:"to,omitempty"`
	Table map[string]string `json:"table,omitempty" yaml:"table,omitempty"`
}

// Validate checks the transform is well formed for its kind.
func (s TransformSpec) Validate() error {
	switch s.Kind {
	case TransformTrim, TransformStripWhitespace, TransformUppercase, TransformLowercase:
		return nil
	case TransformDateFormat:
		if s.From == "" || s.To == "" {
			return fmt.Errorf("dateFormat requires both from and to layouts")
		}
		return nil
	case TransformEnumRelabel:
		if len(s.Table) == 0 {
			return fmt.Errorf("enumRelabel requires a non-empty table")
		}
		return nil
	case "":
		return fmt.Errorf("transform kind is required")
	default:
		return fmt.Errorf("unknown transform kind %q", s.Kind)
	}
}

// Apply maps an internal value to its portal shape. Non-string values pass
// through the string transforms unchanged.
func (s TransformSpec) Apply(value any) (any, error) {
	str, isString := value.(string)
	switch s.Kind {
	case TransformTrim:
		if !isString {
			return value, nil
		}
		return strings.TrimSpace(str), nil
	case TransformStripWhitespace:
		if !isString {
			return value, nil
		}
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, str), nil
	case TransformUppercase:
		if !isString {
			return value, nil
		}
		return strings.ToUpper(str), nil
	case TransformLowercase:
		if !isString {
			return value, nil
		}
		return strings.ToLower(str), nil
	case TransformDateFormat:
		if !isString {
			return nil, fmt.Errorf("dateFormat expects a string, got %T", value)
		}
		t, err := time.Parse(goLayout(s.From), strings.TrimSpace(str))
		if err != nil {
			return nil, fmt.Errorf("value %q does not match layout %s", str, s.From)
		}
		return t.Format(goLayout(s.To)), nil
	case TransformEnumRelabel:
		key := fmt.Sprint(value)
		if relabeled, ok := s.Table[key]; ok {
			return relabeled, nil
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unknown transform kind %q", s.Kind)
	}
}

// layoutTokens are replaced longest first so "MM" and "mm" do not collide.
var layoutTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// goLayout converts a portable layout such as "DD/MM/YYYY" to a Go time layout.
func goLayout(portable string) string {
	var b strings.Builder
	for i := 0; i < len(portable); {
		matched := false
		for _, tok := range layoutTokens {
			if strings.HasPrefix(portable[i:], tok.token) {
				b.WriteString(tok.layout)
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(portable[i])
			i++
		}
	}
	return b.String()
}
