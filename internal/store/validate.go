package store

import (
	"errors"
	"fmt"
	"regexp"

	"threadmirror/internal/types"
)

var (
	// ErrValidation is the base class for rejected writes.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStatusID means an id was not purely numeric or had an
	// implausible length.
	ErrInvalidStatusID = fmt.Errorf("%w: invalid status id", ErrValidation)
)

// statusIDPattern accepts purely numeric ids up to 25 digits. Real ids are
// long snowflakes but tests and fixtures legitimately use short ones.
var statusIDPattern = regexp.MustCompile(`^\d{1,25}$`)

// ValidateStatusID rejects ids that are not purely numeric or are outside
// the expected length range.
func ValidateStatusID(id string) error {
	if !statusIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidStatusID, id)
	}
	return nil
}

// ValidateThread checks a thread is persistable: it must have a canonical
// id, and every non-empty id in it must be well-formed.
func ValidateThread(t *types.Thread) error {
	id := t.CanonicalID()
	if id == "" {
		return fmt.Errorf("%w: thread has no canonical id", ErrValidation)
	}
	if err := ValidateStatusID(id); err != nil {
		return err
	}
	for _, r := range t.Replies {
		if r.PostID == "" {
			continue
		}
		if err := ValidateStatusID(r.PostID); err != nil {
			return err
		}
	}
	return nil
}
