package manifest

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrManifestInvalid wraps any schema violation found while validating a
// manifest. Callers can distinguish a malformed manifest from an I/O
// failure with errors.Is.
var ErrManifestInvalid = errors.New("manifest invalid")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the manifest against the schema: required fields present
// and well-typed on every entry, unique book ids, and dense 1..N page
// numbering per book. Validation is all-or-nothing; a single bad entry
// rejects the whole document.
func Validate(m *Manifest) error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	seen := make(map[string]struct{}, len(m.Books))
	for _, b := range m.Books {
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: duplicate book id %q", ErrManifestInvalid, b.ID)
		}
		seen[b.ID] = struct{}{}

		if b.TotalPages != len(b.Pages) && len(b.Pages) > 0 {
			return fmt.Errorf("%w: book %q declares %d pages but carries %d",
				ErrManifestInvalid, b.ID, b.TotalPages, len(b.Pages))
		}
		for i, p := range b.Pages {
			if p.PageNumber != i+1 {
				return fmt.Errorf("%w: book %q page %d has pageNumber %d",
					ErrManifestInvalid, b.ID, i+1, p.PageNumber)
			}
		}
	}
	return nil
}
