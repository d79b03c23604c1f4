package database

import "errors"

var (
	// ErrLabelNotFound is returned when rename or delete references an
	// identity that owns no rows.
	ErrLabelNotFound = errors.New("label not found")

	// ErrLabelExists is returned when a rename target is already taken.
	ErrLabelExists = errors.New("label already exists")

	// ErrLabelConflict is returned when an enrolled name normalizes to the
	// same form as a different existing name (e.g. "Jiří" vs "jiri").
	ErrLabelConflict = errors.New("label conflicts with an existing identity")

	// ErrReservedLabel is returned for known names that would read back as
	// an Unknown label.
	ErrReservedLabel = errors.New("label is reserved for unknown identities")

	// ErrInvalidLabel is returned for empty or malformed labels.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrDimensionMismatch is returned for embeddings of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroEmbedding is returned for embeddings that cannot be normalized.
	ErrZeroEmbedding = errors.New("embedding has zero norm")

	// ErrNoEmbeddings is returned when enrolling without any embedding.
	ErrNoEmbeddings = errors.New("no embeddings to enroll")

	// ErrPersistence wraps I/O failures while saving or loading the index.
	// A mutation returning an error that wraps ErrPersistence has been
	// applied in memory but is not yet durable.
	ErrPersistence = errors.New("index persistence failed")

	// ErrIndexLocked is returned by OpenIndex when another writer holds the
	// data directory.
	ErrIndexLocked = errors.New("face index is locked by another process")

	// ErrReadOnly is returned for mutations on an index opened read-only.
	ErrReadOnly = errors.New("face index is read-only")

	// ErrRegistryCorruption is returned when the persisted vectors and labels
	// disagree. It must not be coerced into a usable index.
	ErrRegistryCorruption = errors.New("index registry corrupted")
)
