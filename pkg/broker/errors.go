package broker

import "fmt"

// StorageError reports a failure reading, writing, or deleting the persisted
// authentication record. Read-side failures are recovered by the holder as
// "no record"; write and delete failures are surfaced to the caller.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("auth record %s failed (%s): %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AcquisitionError reports a token exchange that failed for reasons other
// than "not logged in" (network failure, provider rejection). It is never
// retried beyond the single silent-interactive-silent escalation.
type AcquisitionError struct {
	Op  string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("token acquisition failed (%s): %v", e.Op, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
