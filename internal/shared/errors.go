package shared

import "errors"

// ErrAccessDenied indicates the caller's scope excludes the target.
var ErrAccessDenied = errors.New("access denied")
