package query

import (
	"github.com/whatevertogo/asset-analyzer/pkg/record"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
)

// Combinator joins the conditions of a group.
type Combinator int

const (
	And Combinator = iota
	Or
)

func (c Combinator) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// Group is an ordered set of conditions joined by one combinator.
type Group struct {
	Combinator Combinator
	Conditions []*Condition
}

// NewGroup creates a group with the given combinator.
func NewGroup(c Combinator, conds ...*Condition) *Group {
	return &Group{Combinator: c, Conditions: conds}
}

// enabled returns the enabled conditions in declaration order.
func (g *Group) enabled() []*Condition {
	out := make([]*Condition, 0, len(g.Conditions))
	for _, c := range g.Conditions {
		if c != nil && c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Evaluate tests the group against one record, short-circuiting: AND
// stops at the first failing condition, OR at the first passing one.
//
// A nil group, an empty group, or a group whose conditions are all
// disabled evaluates true. The permissive default makes an unconfigured
// filter a pass-through rather than an empty result.
func (g *Group) Evaluate(reg *schema.Registry, r *record.Record) bool {
	if g == nil {
		return true
	}
	enabled := g.enabled()
	if len(enabled) == 0 {
		return true
	}

	if g.Combinator == Or {
		for _, c := range enabled {
			if c.Evaluate(reg, r) {
				return true
			}
		}
		return false
	}

	for _, c := range enabled {
		if !c.Evaluate(reg, r) {
			return false
		}
	}
	return true
}

// Run filters a record set through the group, preserving input order.
// It is a stable filter, not a re-sort: O(len(records) × enabled
// conditions).
func Run(reg *schema.Registry, g *Group, records []*record.Record) []*record.Record {
	matched := make([]*record.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if g.Evaluate(reg, r) {
			matched = append(matched, r)
		}
	}
	return matched
}
