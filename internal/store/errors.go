package store

import "fmt"

// StorageError reports that the medium failed a read, write or remove, or
// handed back a value that is not a JSON array of records.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SerializationError reports a record that could not be JSON-encoded.
type SerializationError struct {
	Collection string
	Err        error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("store encode %s: %v", e.Collection, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
