package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues in a captured trace.
var ErrDataIntegrity = errors.New("data integrity error")
