package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/logging"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// ListParams selects one page of students. Page is 1-based.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

// ListResult is one page of students plus the total matching the search.
type ListResult struct {
	Students []Student `json:"students"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// Directory reads and writes student records.
type Directory struct {
	coll docstore.Collection
	now  Clock
}

// NewDirectory returns a Directory over coll. A nil clock uses time.Now.
func NewDirectory(coll docstore.Collection, now Clock) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{coll: coll, now: now}
}

// Create inserts exactly the supplied fields and returns the stored record.
func (d *Directory) Create(ctx context.Context, fields Fields) (Student, error) {
	doc := docstore.Document(fields).Clone()
	id, err := d.coll.InsertOne(ctx, doc)
	if err != nil {
		return Student{}, fmt.Errorf("failed to create student: %w", err)
	}
	doc[docstore.IDField] = id

	logging.FromContext(ctx).Debug("student created", "student_id", id)
	return studentFromDocument(doc), nil
}

// List returns the requested page, newest first. An empty search matches
// every student; otherwise the term must appear verbatim, ignoring case,
// in the name, mobile or college name.
func (d *Directory) List(ctx context.Context, p ListParams) (ListResult, error) {
	if p.Page < 1 || p.Limit < 1 {
		return ListResult{}, fmt.Errorf("%w: page and limit must be positive", ErrInvalidInput)
	}

	filter := docstore.ContainsAny(p.Search, SearchFields...)

	// An offset past MaxInt64 is past the end of any collection.
	var docs []docstore.Document
	if int64(p.Page-1) <= math.MaxInt64/int64(p.Limit) {
		var err error
		docs, err = d.coll.Aggregate(ctx, docstore.Pipeline{
			docstore.Match{Filter: filter},
			docstore.Sort{Fields: []docstore.SortField{{Field: FieldCreatedAt, Desc: true}}},
			docstore.Skip{N: int64(p.Page-1) * int64(p.Limit)},
			docstore.Limit{N: int64(p.Limit)},
		})
		if err != nil {
			return ListResult{}, fmt.Errorf("failed to fetch students: %w", err)
		}
	}

	total, err := d.coll.Count(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to fetch students: %w", err)
	}

	students := make([]Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, studentFromDocument(doc))
	}
	return ListResult{Students: students, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// Get returns the student with id.
func (d *Directory) Get(ctx context.Context, id string) (Student, error) {
	doc, err := d.coll.FindOne(ctx, docstore.ByID(id))
	if err != nil {
		if isMissing(err) {
			return Student{}, ErrNotFound
		}
		return Student{}, fmt.Errorf("failed to fetch student: %w", err)
	}
	return studentFromDocument(doc), nil
}

// Update sets fields and a fresh updated_at on the student with id and
// returns the re-read record. An update that modifies nothing reports
// ErrNotFound, the same as a missing id.
func (d *Directory) Update(ctx context.Context, id string, fields Fields) (Student, error) {
	set := docstore.Document(fields).Clone()
	set[FieldUpdatedAt] = d.now().UTC()

	n, err := d.coll.UpdateOne(ctx, docstore.ByID(id), set)
	if err != nil {
		if isMissing(err) {
			return Student{}, ErrNotFound
		}
		return Student{}, fmt.Errorf("failed to update student: %w", err)
	}
	if n == 0 {
		return Student{}, ErrNotFound
	}

	logging.FromContext(ctx).Debug("student updated", "student_id", id, "fields", len(fields))
	return d.Get(ctx, id)
}

// Delete removes the student with id.
func (d *Directory) Delete(ctx context.Context, id string) error {
	n, err := d.coll.DeleteOne(ctx, docstore.ByID(id))
	if err != nil {
		if isMissing(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	logging.FromContext(ctx).Info("student deleted", "student_id", id)
	return nil
}

func isMissing(err error) bool {
	return errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidID)
}
