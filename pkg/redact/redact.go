package redact

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Mask is the placeholder substituted for fully masked values.
const Mask = "***REDACTED***"

// maxStringLen bounds string values carried into log events. Longer
// strings are cut and suffixed with truncatedMark; the result is always
// exactly maxStringLen bytes so re-running the redactor is a no-op.
const maxStringLen = 1000

const truncatedMark = "... [truncated]"

// Action determines what happens to a matched field or value.
type Action int

const (
	// ActionMask replaces the whole value with the Mask placeholder.
	ActionMask Action = iota
	// ActionPlaceholder substitutes a partially revealing token that
	// keeps the last four characters for operational use.
	ActionPlaceholder
	// ActionDrop removes the field from the output entirely.
	ActionDrop
)

// Kind selects how a rule matches.
type Kind int

const (
	// KindFieldSubstring matches when the field name contains the
	// pattern, case-insensitively.
	KindFieldSubstring Kind = iota
	// KindFieldPattern matches the field name against a regular
	// expression.
	KindFieldPattern
	// KindContentPattern scans string values for a regular
	// expression, independent of the field name.
	KindContentPattern
)

// Rule is one declarative redaction policy entry.
type Rule struct {
	Kind    Kind
	Pattern string
	Action  Action

	re *regexp.Regexp
}

// FieldRule builds a case-insensitive field-name substring rule.
func FieldRule(substr string, action Action) Rule {
	return Rule{Kind: KindFieldSubstring, Pattern: strings.ToLower(substr), Action: action}
}

// FieldPatternRule builds a field-name regexp rule.
func FieldPatternRule(expr string, action Action) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid field pattern %q: %w", expr, err)
	}
	return Rule{Kind: KindFieldPattern, Pattern: expr, Action: action, re: re}, nil
}

// ContentRule builds a content-pattern rule applied to string values.
func ContentRule(expr string, action Action) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid content pattern %q: %w", expr, err)
	}
	return Rule{Kind: KindContentPattern, Pattern: expr, Action: action, re: re}, nil
}

// sensitiveNames are field-name fragments that must never reach a sink
// in plain text, whatever the nesting depth.
var sensitiveNames = []string{
	"password", "secret", "token", "auth", "key", "credential",
	"private", "hash", "salt", "pin", "cipher", "ssn", "card",
}

const (
	emailPattern = `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`
	// 13-19 consecutive digits, the shape of a payment card number.
	panPattern = `\b[0-9]{13,19}\b`
)

// DefaultRules returns the built-in policy: sensitive field names are
// fully masked; email-shaped strings and card-number-shaped digit runs
// are replaced with a last-four placeholder wherever they appear.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(sensitiveNames)+2)
	for _, name := range sensitiveNames {
		rules = append(rules, FieldRule(name, ActionMask))
	}
	email, _ := ContentRule(emailPattern, ActionPlaceholder)
	pan, _ := ContentRule(panPattern, ActionPlaceholder)
	return append(rules, email, pan)
}

// Redactor applies an ordered rule set to arbitrary values. Field-name
// rules are evaluated before content rules; the first matching
// field-name rule wins, while content rules are each applied in order.
type Redactor struct {
	fieldRules   []Rule
	contentRules []Rule
}

// New compiles a redactor from a rule list. Rules keep their relative
// order within the field-name and content groups.
func New(rules []Rule) *Redactor {
	r := &Redactor{}
	for _, rule := range rules {
		if rule.Kind == KindContentPattern {
			r.contentRules = append(r.contentRules, rule)
		} else {
			r.fieldRules = append(r.fieldRules, rule)
		}
	}
	return r
}

// Redact returns a sanitized copy of v. The result is safe to marshal
// as JSON: maps and slices are rebuilt, structs are converted to maps
// of their exported fields, cycles are broken, and unsupported types
// are stringified. Redact is pure and idempotent.
func (r *Redactor) Redact(v any) any {
	return r.walk(v, make(map[uintptr]bool))
}

func (r *Redactor) walk(v any, visited map[uintptr]bool) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return r.scanString(val)
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case error:
		return r.scanString(val.Error())
	case map[string]any:
		return r.walkStringMap(val, visited)
	case []any:
		return r.walkSlice(val, visited)
	}
	return r.walkReflect(reflect.ValueOf(v), visited)
}

func (r *Redactor) walkStringMap(m map[string]any, visited map[uintptr]bool) any {
	ptr := reflect.ValueOf(m).Pointer()
	if visited[ptr] {
		return "<cycle>"
	}
	visited[ptr] = true
	defer delete(visited, ptr)

	out := make(map[string]any, len(m))
	for k, v := range m {
		r.setField(out, k, v, visited)
	}
	return out
}

func (r *Redactor) walkSlice(s []any, visited map[uintptr]bool) any {
	if s == nil {
		return nil
	}
	if cap(s) > 0 {
		ptr := reflect.ValueOf(s).Pointer()
		if visited[ptr] {
			return "<cycle>"
		}
		visited[ptr] = true
		defer delete(visited, ptr)
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = r.walk(v, visited)
	}
	return out
}

// setField applies field-name rules to key before recursing into the
// value. Dropped fields leave no trace in the output map.
func (r *Redactor) setField(out map[string]any, key string, v any, visited map[uintptr]bool) {
	if rule, ok := r.matchField(key); ok {
		switch rule.Action {
		case ActionDrop:
			return
		case ActionMask:
			out[key] = Mask
			return
		case ActionPlaceholder:
			out[key] = placeholder(stringify(v))
			return
		}
	}
	out[key] = r.walk(v, visited)
}

func (r *Redactor) matchField(name string) (Rule, bool) {
	lower := strings.ToLower(name)
	for _, rule := range r.fieldRules {
		switch rule.Kind {
		case KindFieldSubstring:
			if strings.Contains(lower, rule.Pattern) {
				return rule, true
			}
		case KindFieldPattern:
			if rule.re.MatchString(name) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

// scanString applies content rules to a string value, then enforces the
// length bound. Placeholder rules rewrite their matches in place so a
// single string can carry several redacted spans; a mask rule replaces
// the whole value and ends the scan.
func (r *Redactor) scanString(s string) string {
	for _, rule := range r.contentRules {
		if !rule.re.MatchString(s) {
			continue
		}
		if rule.Action == ActionPlaceholder {
			s = rule.re.ReplaceAllStringFunc(s, placeholder)
			continue
		}
		s = Mask
		break
	}
	return truncate(s)
}

func (r *Redactor) walkReflect(rv reflect.Value, visited map[uintptr]bool) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Pointer {
			ptr := rv.Pointer()
			if visited[ptr] {
				return "<cycle>"
			}
			visited[ptr] = true
			defer delete(visited, ptr)
		}
		return r.walk(rv.Elem().Interface(), visited)

	case reflect.Map:
		ptr := rv.Pointer()
		if visited[ptr] {
			return "<cycle>"
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			r.setField(out, key, iter.Value().Interface(), visited)
		}
		return out

	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("<%d bytes>", rv.Len())
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return "<cycle>"
		}
		visited[ptr] = true
		defer delete(visited, ptr)
		return r.reflectSeq(rv, visited)

	case reflect.Array:
		return r.reflectSeq(rv, visited)

	case reflect.Struct:
		t := rv.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			r.setField(out, f.Name, rv.Field(i).Interface(), visited)
		}
		return out

	default:
		// Channels, funcs and anything else without a JSON shape.
		return r.scanString(stringifyValue(rv))
	}
}

func (r *Redactor) reflectSeq(rv reflect.Value, visited map[uintptr]bool) any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = r.walk(rv.Index(i).Interface(), visited)
	}
	return out
}

// placeholder keeps the last four characters of a value and masks the
// rest; values too short to reveal anything are fully masked.
func placeholder(s string) string {
	if len(s) <= 4 {
		return Mask
	}
	return "***" + s[len(s)-4:]
}

func truncate(s string) string {
	if len(s) <= maxStringLen {
		return s
	}
	return s[:maxStringLen-len(truncatedMark)] + truncatedMark
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

func stringifyValue(rv reflect.Value) string {
	if !rv.IsValid() {
		return "<invalid>"
	}
	if rv.Kind() == reflect.Func || rv.Kind() == reflect.Chan {
		return fmt.Sprintf("<%s>", rv.Type())
	}
	return fmt.Sprint(rv.Interface())
}
