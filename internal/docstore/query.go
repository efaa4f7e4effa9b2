package docstore

import (
	"fmt"
	"time"
)

// Filter selects documents. The zero Filter matches every document.
type Filter struct {
	// ID restricts the match to a single identifier.
	ID string

	// Search, when non-nil, requires Term to appear as a case-insensitive
	// literal substring of at least one of Fields.
	Search *Search
}

// Search is an OR of case-insensitive substring matches.
type Search struct {
	Term   string
	Fields []string
}

// ByID returns a Filter matching a single identifier.
func ByID(id string) Filter {
	return Filter{ID: id}
}

// ContainsAny returns a Filter matching documents where any of fields
// contains term. An empty term yields the match-all filter.
func ContainsAny(term string, fields ...string) Filter {
	if term == "" {
		return Filter{}
	}
	return Filter{Search: &Search{Term: term, Fields: fields}}
}

// IsZero reports whether f matches every document.
func (f Filter) IsZero() bool {
	return f.ID == "" && f.Search == nil
}

// Stage is one step of a Pipeline.
type Stage interface {
	stage()
}

// Match keeps documents matching Filter.
type Match struct{ Filter Filter }

// Sort orders documents by Fields, left to right.
type Sort struct{ Fields []SortField }

// SortField is one sort key.
type SortField struct {
	Field string
	Desc  bool
}

// Skip drops the first N documents.
type Skip struct{ N int64 }

// Limit keeps at most N documents.
type Limit struct{ N int64 }

func (Match) stage() {}
func (Sort) stage()  {}
func (Skip) stage()  {}
func (Limit) stage() {}

// Pipeline is an ordered list of stages evaluated server-side.
type Pipeline []Stage

// String returns the value of key as a string. Missing and nil values
// yield "".
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case interface{ String() string }:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Time returns the value of key as a time. Backends normalize stored
// timestamps to time.Time; RFC 3339 strings are accepted as a fallback.
func (d Document) Time(key string) (time.Time, bool) {
	switch v := d[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
