package template

import (
	"reflect"
	"strings"
)

// SanitizeOptions controls HTML escaping of variable values.
type SanitizeOptions struct {
	// SkipQuoteEscaping leaves ' and " alone. Use it when values are
	// injected as markup rather than inside quoted attributes.
	SkipQuoteEscaping bool `json:"skipQuoteEscaping"`
}

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	htmlEscaperNoQuotes = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
)

// SanitizeString escapes s for safe substitution into HTML.
func SanitizeString(s string, opts SanitizeOptions) string {
	if opts.SkipQuoteEscaping {
		return htmlEscaperNoQuotes.Replace(s)
	}
	return htmlEscaper.Replace(s)
}

// SanitizeVariables returns a copy of vars with every string, including
// those nested in lists and objects, escaped. Other scalars are copied
// unchanged. Input that is not a mapping yields an empty map.
func SanitizeVariables(vars any, opts SanitizeOptions) map[string]any {
	return sanitizeObject(toVariables(vars), opts)
}

func sanitizeObject(m map[string]any, opts SanitizeOptions) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitizeValue(v, opts)
	}
	return out
}

func sanitizeValue(v any, opts SanitizeOptions) any {
	switch x := v.(type) {
	case string:
		return SanitizeString(x, opts)
	case map[string]any:
		return sanitizeObject(x, opts)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = sanitizeValue(item, opts)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, item := range x {
			out[i] = SanitizeString(item, opts)
		}
		return out
	case Value:
		return sanitizeTree(x, opts)
	}
	return sanitizeReflect(reflect.ValueOf(v), v, opts)
}

// sanitizeReflect covers the typed collections FromAny accepts. Anything
// FromAny would render as a string is escaped in its string form.
func sanitizeReflect(rv reflect.Value, v any, opts SanitizeOptions) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return v
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return v
		}
		return sanitizeValue(rv.Elem().Interface(), opts)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = sanitizeValue(rv.Index(i).Interface(), opts)
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = sanitizeValue(iter.Value().Interface(), opts)
		}
		return out
	}
	if fv := FromAny(v); fv.Kind() == KindString {
		return SanitizeString(fv.String(), opts)
	}
	return v
}

// sanitizeTree escapes every string held in a Value.
func sanitizeTree(v Value, opts SanitizeOptions) Value {
	switch v.kind {
	case KindString:
		return StringValue(SanitizeString(v.str, opts))
	case KindList:
		list := make([]Value, len(v.list))
		for i, item := range v.list {
			list[i] = sanitizeTree(item, opts)
		}
		return Value{kind: KindList, list: list}
	case KindObject:
		obj := make(map[string]Value, len(v.obj))
		for k, item := range v.obj {
			obj[k] = sanitizeTree(item, opts)
		}
		out := Value{kind: KindObject, obj: obj}
		if v.raw != nil {
			out.raw = sanitizeValue(v.raw, opts)
		}
		return out
	}
	return v
}
