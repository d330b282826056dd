package books

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for ids that do not exist in the manifest.
// It is distinct from loading or I/O failures so callers can tell
// "no such book" from "not yet loaded".
var ErrNotFound = errors.New("not found")

// notFound wraps ErrNotFound with the offending id.
func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
