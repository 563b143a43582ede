package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt is returned when a document fails framing or checksum validation.
	ErrCorrupt = errors.New("corrupt document")

	// ErrUnknownCodec is returned when a document names a codec or compression
	// that is not built in.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrUnsupportedVersion is returned for documents written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported document version")

	// ErrMissingSection is returned by loaders that require a section.
	ErrMissingSection = errors.New("missing section")
)

// ChecksumMismatchError is returned when checksum verification fails.
// It matches ErrCorrupt.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Is reports whether target is ErrCorrupt.
func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrCorrupt }
