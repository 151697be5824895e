package insightgraph

import "errors"

var (
	// ErrDocumentNotFound is returned when a document id does not exist.
	ErrDocumentNotFound = errors.New("insightgraph: document not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("insightgraph: unsupported document format")

	// ErrEmptyDocument is returned when a document yields no extractable text.
	ErrEmptyDocument = errors.New("insightgraph: document has no extractable text")

	// ErrBrandRequired is returned when an operation is missing its brand scope.
	ErrBrandRequired = errors.New("insightgraph: brand id is required")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("insightgraph: invalid configuration")
)
