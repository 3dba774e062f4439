// Package query evaluates multi-condition boolean filters against record
// fields without static knowledge of the record schema.
package query

import (
	"regexp"

	"github.com/whatevertogo/asset-analyzer/pkg/logging"
	"github.com/whatevertogo/asset-analyzer/pkg/record"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
)

// Op is a condition operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpContains
	OpNotContains
	OpHasPrefix
	OpHasSuffix
	OpMatches // regex
	OpIsNull
	OpIsNotNull
)

var opNames = map[Op]string{
	OpEq:          "eq",
	OpNe:          "ne",
	OpLt:          "lt",
	OpLe:          "le",
	OpGt:          "gt",
	OpGe:          "ge",
	OpContains:    "contains",
	OpNotContains: "not-contains",
	OpHasPrefix:   "has-prefix",
	OpHasSuffix:   "has-suffix",
	OpMatches:     "matches",
	OpIsNull:      "is-null",
	OpIsNotNull:   "is-not-null",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// OpFromName maps a textual operator name (as used by the CLI and the web
// API) to an Op.
func OpFromName(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name {
			return op, true
		}
	}
	return OpEq, false
}

// Condition is one field-operator-value predicate. Disabled conditions
// are excluded by the enclosing group and individually evaluate false.
type Condition struct {
	Field   string
	Op      Op
	Value   record.Value
	Enabled bool
}

// NewCondition creates an enabled condition.
func NewCondition(field string, op Op, value record.Value) *Condition {
	return &Condition{Field: field, Op: op, Value: value, Enabled: true}
}

// Evaluate tests the condition against one record. Evaluation never
// panics out: a missing field, an operator the value kind does not
// support, or a malformed regex all evaluate false. One bad condition
// must not abort a batch.
func (c *Condition) Evaluate(reg *schema.Registry, r *record.Record) (result bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Warn("condition evaluation recovered", "field", c.Field, "op", c.Op.String(), "panic", rec)
			result = false
		}
	}()

	if !c.Enabled || r == nil {
		return false
	}

	desc, ok := reg.Resolve(r.Type, c.Field)
	if !ok {
		return false
	}
	v := reg.Value(r, desc)

	switch c.Op {
	case OpIsNull:
		return v.IsNull()
	case OpIsNotNull:
		return !v.IsNull()
	case OpEq:
		return Equal(v, c.Value)
	case OpNe:
		return !Equal(v, c.Value)
	case OpLt:
		return Compare(v, c.Value) < 0
	case OpLe:
		return Compare(v, c.Value) <= 0
	case OpGt:
		return Compare(v, c.Value) > 0
	case OpGe:
		return Compare(v, c.Value) >= 0
	case OpContains:
		return MatchesText(v, c.Value.Text(), TextContains)
	case OpNotContains:
		return !v.IsNull() && !MatchesText(v, c.Value.Text(), TextContains)
	case OpHasPrefix:
		return MatchesText(v, c.Value.Text(), TextPrefix)
	case OpHasSuffix:
		return MatchesText(v, c.Value.Text(), TextSuffix)
	case OpMatches:
		return matchesRegexp(v, c.Value)
	default:
		return false
	}
}

// matchesRegexp applies a regex condition. It only makes sense when both
// the field value and the pattern are textual; anything else is false, as
// is a pattern that does not compile.
func matchesRegexp(v, pattern record.Value) bool {
	if !v.IsTextual() || !pattern.IsTextual() {
		return false
	}
	re, err := regexp.Compile(pattern.Text())
	if err != nil {
		logging.Debug("ignoring malformed query regex", "pattern", pattern.Text(), "error", err)
		return false
	}
	return re.MatchString(v.Text())
}
