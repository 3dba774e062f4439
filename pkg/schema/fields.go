// Package schema resolves simple and dotted field names on record types
// to descriptors and caches the resolution per (type, path) pair.
package schema

import (
	"strings"
	"sync"

	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// reservedFields are host bookkeeping slots that must never resolve, even
// when a type declares them.
var reservedFields = map[string]bool{
	"__id":       true,
	"__type":     true,
	"__guid":     true,
	"__script":   true,
	"__instance": true,
}

// FieldDescriptor is the resolved location of a field: the path as
// queried, the declared kind of its head field, and the type in the
// hierarchy that declares it. For dotted paths the leaf kind is only
// known once the value is read.
type FieldDescriptor struct {
	Name  string
	Kind  record.Kind
	Owner *record.Type

	head string
	path []string // nested segments below the head field
}

type cacheKey struct {
	typ  *record.Type
	name string
}

// Registry resolves and caches field descriptors. The cache lives for the
// process; callers that detect a schema change call Clear. Safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	cache map[cacheKey]*FieldDescriptor
}

// NewRegistry creates an empty descriptor registry.
func NewRegistry() *Registry {
	return &Registry{cache: make(map[cacheKey]*FieldDescriptor)}
}

// Resolve finds the descriptor for a field path on a type. The head
// segment resolves by walking the base chain from the most-derived type
// up; the first match wins. A dotted path ("stats.hp") additionally
// requires the head to be an object-kind field; the remaining segments
// are looked up inside the object value at read time. Reserved
// bookkeeping names and delegate-kind fields never resolve, in any
// segment position. A negative result is cached too, as a nil
// descriptor.
func (reg *Registry) Resolve(t *record.Type, name string) (*FieldDescriptor, bool) {
	if t == nil || name == "" {
		return nil, false
	}
	for _, seg := range strings.Split(name, ".") {
		if seg == "" || reservedFields[seg] {
			return nil, false
		}
	}

	key := cacheKey{typ: t, name: name}

	reg.mu.RLock()
	desc, hit := reg.cache[key]
	reg.mu.RUnlock()
	if hit {
		return desc, desc != nil
	}

	desc = resolveUncached(t, name)

	reg.mu.Lock()
	reg.cache[key] = desc
	reg.mu.Unlock()

	return desc, desc != nil
}

func resolveUncached(t *record.Type, name string) *FieldDescriptor {
	segments := strings.Split(name, ".")
	head := segments[0]
	nested := segments[1:]

	for cur := t; cur != nil; cur = cur.Base {
		for _, f := range cur.Fields {
			if f.Name != head {
				continue
			}
			if f.Kind == record.KindDelegate {
				// Delegate slots carry no comparable value.
				return nil
			}
			if len(nested) > 0 && f.Kind != record.KindObject {
				// Only object fields have addressable members.
				return nil
			}
			return &FieldDescriptor{Name: name, Kind: f.Kind, Owner: cur, head: head, path: nested}
		}
	}
	return nil
}

// Value reads the described field off a record, descending into nested
// object members for dotted paths. Any failure (nil record, unset field,
// missing segment) degrades to a null value so one bad field never
// aborts a batch evaluation.
func (reg *Registry) Value(r *record.Record, desc *FieldDescriptor) record.Value {
	if r == nil || desc == nil {
		return record.Null()
	}
	head := desc.head
	if head == "" {
		head = desc.Name
	}
	v := r.Get(head)
	for _, seg := range desc.path {
		v = v.Field(seg)
	}
	return v
}

// Clear empties the descriptor cache. Callers use it after a schema
// change; descriptors are otherwise process-lifetime.
func (reg *Registry) Clear() {
	reg.mu.Lock()
	reg.cache = make(map[cacheKey]*FieldDescriptor)
	reg.mu.Unlock()
}

// Len returns the number of cached resolutions, including negative ones.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.cache)
}
