package record

// Source is the external owner of the record set. The analyzer never
// persists or mutates records through it.
type Source interface {
	// ListAll returns every record the source currently holds.
	ListAll() ([]*Record, error)

	// LoadByKey returns the record with the given identity key, or
	// (nil, nil) when no such record exists.
	LoadByKey(key string) (*Record, error)
}

// ReferenceExtractor resolves which other records a record points to. It
// is consumed by the graph builder only; implementations typically walk
// ref-valued fields against the host's native dependency mechanism.
type ReferenceExtractor interface {
	ReferencesOf(r *Record) ([]*Record, error)
}
