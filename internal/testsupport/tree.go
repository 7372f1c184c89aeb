package testsupport

import (
	"strconv"
	"testing"
)

// Dig walks a decoded JSON tree. Each step is a string object key or an int
// array index. The test fails when a step does not resolve.
func Dig(t testing.TB, v any, steps ...any) any {
	t.Helper()

	cur := v
	for i, step := range steps {
		switch s := step.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				t.Fatalf("step %d (%q): expected object, got %T", i, s, cur)
			}
			next, ok := obj[s]
			if !ok {
				t.Fatalf("step %d: missing key %q in %v", i, s, keys(obj))
			}
			cur = next
		case int:
			arr, ok := cur.([]any)
			if !ok {
				t.Fatalf("step %d ([%d]): expected array, got %T", i, s, cur)
			}
			if s < 0 || s >= len(arr) {
				t.Fatalf("step %d: index %d out of range (len %d)", i, s, len(arr))
			}
			cur = arr[s]
		default:
			t.Fatalf("step %d: unsupported step type %T", i, step)
		}
	}
	return cur
}

// Object is Dig constrained to an object result.
func Object(t testing.TB, v any, steps ...any) map[string]any {
	t.Helper()

	got := Dig(t, v, steps...)
	obj, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("%s: expected object, got %T", describe(steps), got)
	}
	return obj
}

// Array is Dig constrained to an array result.
func Array(t testing.TB, v any, steps ...any) []any {
	t.Helper()

	got := Dig(t, v, steps...)
	arr, ok := got.([]any)
	if !ok {
		t.Fatalf("%s: expected array, got %T", describe(steps), got)
	}
	return arr
}

// String is Dig constrained to a string result.
func String(t testing.TB, v any, steps ...any) string {
	t.Helper()

	got := Dig(t, v, steps...)
	s, ok := got.(string)
	if !ok {
		t.Fatalf("%s: expected string, got %T", describe(steps), got)
	}
	return s
}

func keys(obj map[string]any) []string {
	out := make([]string, 0, len(obj))
	for k := range obj {
		out = append(out, k)
	}
	return out
}

func describe(steps []any) string {
	out := ""
	for _, step := range steps {
		switch s := step.(type) {
		case string:
			out += "." + s
		case int:
			out += "[" + strconv.Itoa(s) + "]"
		}
	}
	if out == "" {
		return "root"
	}
	return out
}
