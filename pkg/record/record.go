// Package record defines the data model the analyzer operates on: typed
// records with heterogeneous field values, owned by an external source and
// only observed here.
package record

import "sort"

// FieldSpec declares one named field on a type.
type FieldSpec struct {
	Name string
	Kind Kind
}

// Type describes a record type. Types form a single-inheritance hierarchy
// through Base; field lookup walks from the most-derived type toward the
// root.
type Type struct {
	Name   string
	Base   *Type
	Fields []FieldSpec
}

// NewType creates a type with the given base (nil for a root type).
func NewType(name string, base *Type, fields ...FieldSpec) *Type {
	return &Type{Name: name, Base: base, Fields: fields}
}

// IsA reports whether t is name or derives from it.
func (t *Type) IsA(name string) bool {
	for cur := t; cur != nil; cur = cur.Base {
		if cur.Name == name {
			return true
		}
	}
	return false
}

// Record is one externally owned data entity. Key is its stable identity
// (a path or equivalent unique string); it must stay stable for the
// duration of a graph build or query evaluation.
type Record struct {
	Key    string
	Type   *Type
	fields map[string]Value
}

// New creates a record of the given type with no field values set.
func New(key string, t *Type) *Record {
	return &Record{Key: key, Type: t, fields: make(map[string]Value)}
}

// Set stores a field value. The record does not validate the value kind
// against the type's field spec; the schema registry is the authority on
// what is queryable.
func (r *Record) Set(name string, v Value) *Record {
	r.fields[name] = v
	return r
}

// Get returns the stored value for a field, or a null value when the
// field was never set.
func (r *Record) Get(name string) Value {
	if r == nil || r.fields == nil {
		return Null()
	}
	return r.fields[name]
}

// FieldNames returns the names of all set fields in sorted order, so
// callers iterating a record see a deterministic sequence.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeName returns the record's type name, or "" for an untyped record.
func (r *Record) TypeName() string {
	if r.Type == nil {
		return ""
	}
	return r.Type.Name
}
