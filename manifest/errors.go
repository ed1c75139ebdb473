package manifest

import (
	"errors"
	"fmt"
)

// Kind classifies a MetadataError.
type Kind int

const (
	// KindMalformed means a required field is missing or unparseable
	KindMalformed Kind = iota + 1

	// KindUnsupportedShape means the document matches neither known shape
	KindUnsupportedShape
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindUnsupportedShape:
		return "unsupported shape"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against a *MetadataError.
var (
	ErrMalformed        = errors.New("malformed metadata")
	ErrUnsupportedShape = errors.New("unsupported metadata shape")
)

// MetadataError reports why a metadata document could not be resolved.
type MetadataError struct {
	Kind Kind

	// Field is the offending field path (e.g. "builds[0].parts[1].offset"), if any
	Field string

	// Reason is a human-readable explanation
	Reason string
}

func (e *MetadataError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("metadata %s: %s: %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("metadata %s: %s", e.Kind, e.Reason)
}

// Is matches ErrMalformed / ErrUnsupportedShape by kind.
func (e *MetadataError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == KindMalformed
	case ErrUnsupportedShape:
		return e.Kind == KindUnsupportedShape
	}
	return false
}

func malformed(field, format string, args ...interface{}) *MetadataError {
	return &MetadataError{Kind: KindMalformed, Field: field, Reason: fmt.Sprintf(format, args...)}
}
