package store

import "fmt"

// ErrNotFound is returned when a job or task id has no matching row, so
// the Status API, job-detail, and worker-endpoint handlers can map it to a
// 404 without probing the error string.
var ErrNotFound = fmt.Errorf("not found")
