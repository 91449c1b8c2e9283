package config

import "errors"

// Document validation errors, returned (possibly wrapped) by
// Document.Validate.
var (
	// ErrUnsupportedVersion is returned for a document version this build
	// cannot read.
	ErrUnsupportedVersion = errors.New("unsupported document version")

	// ErrNoTools is returned when a document lists no tool.
	ErrNoTools = errors.New("document lists no tools")

	// ErrMissingKind is returned for a tool entry without a kind.
	ErrMissingKind = errors.New("tool entry has no kind")

	// ErrDuplicateToolID is returned when two tool entries share an id.
	ErrDuplicateToolID = errors.New("duplicate tool id")

	// ErrStageMismatch is returned when a tool entry names a stage other
	// than the one its kind runs in.
	ErrStageMismatch = errors.New("tool stage does not match its kind")

	// ErrInvalidSettings is returned for unparsable pipeline settings.
	ErrInvalidSettings = errors.New("invalid pipeline settings")
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")
