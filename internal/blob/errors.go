package blob

import "errors"

// ErrNoCredentials marks an incomplete object store configuration. Callers
// run degraded (keep local files, skip uploads) instead of failing.
var ErrNoCredentials = errors.New("object store credentials not configured")
