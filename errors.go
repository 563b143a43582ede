package featurespace

import (
	"errors"
	"fmt"

	"github.com/cmunell/featurespace/blobstore"
	"github.com/cmunell/featurespace/persistence"
)

var (
	// ErrNotFound is returned when a named model does not exist in the store.
	ErrNotFound = blobstore.ErrNotFound

	// ErrNotTrained is returned when a loaded document holds no weights.
	ErrNotTrained = errors.New("model not trained")

	// ErrTooFewLabels is returned when a dataset has fewer than two labels.
	ErrTooFewLabels = errors.New("training needs at least two labels")
)

// ModelError reports a failed operation on a named model.
//
// The original underlying error can be accessed via errors.Unwrap.
type ModelError struct {
	Op    string
	Name  string
	cause error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.cause)
}

func (e *ModelError) Unwrap() error { return e.cause }

func translateError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	// Missing sections of a stored model read as corruption of that model.
	if errors.Is(err, persistence.ErrMissingSection) && !errors.Is(err, persistence.ErrCorrupt) {
		err = fmt.Errorf("%w: %w", persistence.ErrCorrupt, err)
	}
	return &ModelError{Op: op, Name: name, cause: err}
}
