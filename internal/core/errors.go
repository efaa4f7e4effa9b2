package core

import "errors"

var (
	// ErrNotFound is returned when no student matches an id, including ids
	// the store cannot parse.
	ErrNotFound = errors.New("student not found")

	// ErrImport wraps every failure to read a spreadsheet payload.
	ErrImport = errors.New("spreadsheet import failed")

	// ErrUnsupportedFile is returned for uploads that are neither .xlsx nor .csv.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrInvalidInput is returned for request bodies that cannot be decoded
	// into student fields.
	ErrInvalidInput = errors.New("invalid student data")
)
