package query

import (
	"strings"

	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// Compare orders two field values: -1 when a sorts before b, 0 when they
// rank equal, 1 otherwise.
//
// Two nulls are equal and null sorts before any non-null. Same-kind pairs
// use native ordering. For mixed kinds, b is coerced into a's kind first;
// when that fails, both operands fall back to a case-insensitive
// comparison of their textual forms. The fallback trades precision for
// permissiveness so a stored number can be matched against a typed-in
// string; it also means numeric strings order lexically ("10" before
// "9"), which is intentional and pinned by tests.
func Compare(a, b record.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}

	// Int vs float compares numerically without losing precision to a
	// round-trip through int.
	if a.IsNumeric() && b.IsNumeric() {
		return compareFloats(a.Num(), b.Num())
	}

	if a.Kind() != b.Kind() {
		coerced, ok := b.Coerce(a.Kind())
		if !ok {
			return compareTextFold(a.Text(), b.Text())
		}
		b = coerced
	}

	switch a.Kind() {
	case record.KindInt:
		return compareInts(a.Int(), b.Int())
	case record.KindFloat:
		return compareFloats(a.Float(), b.Float())
	case record.KindBool:
		// false sorts before true.
		if a.Bool() == b.Bool() {
			return 0
		}
		if !a.Bool() {
			return -1
		}
		return 1
	case record.KindString, record.KindEnum, record.KindRef:
		return strings.Compare(a.Str(), b.Str())
	default:
		// Vectors, colors and nested objects have no native total
		// order; their textual forms do.
		return compareTextFold(a.Text(), b.Text())
	}
}

// Equal reports whether two values rank equal under Compare.
func Equal(a, b record.Value) bool {
	return Compare(a, b) == 0
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTextFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// TextMode selects the text matching flavor for MatchesText.
type TextMode int

const (
	TextContains TextMode = iota
	TextPrefix
	TextSuffix
)

// MatchesText runs a case-insensitive substring, prefix, or suffix test
// against the value's textual form. A null value never matches.
func MatchesText(v record.Value, needle string, mode TextMode) bool {
	if v.IsNull() {
		return false
	}
	haystack := strings.ToLower(v.Text())
	needle = strings.ToLower(needle)
	switch mode {
	case TextPrefix:
		return strings.HasPrefix(haystack, needle)
	case TextSuffix:
		return strings.HasSuffix(haystack, needle)
	default:
		return strings.Contains(haystack, needle)
	}
}
