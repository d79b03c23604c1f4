package database

// Face embedding parameters (buffalo_l / ArcFace)
const (
	// EmbeddingDim is the fixed length of a face embedding.
	EmbeddingDim = 512

	// DefaultMergeSimilarity is the cosine similarity above which an Unknown
	// identity is considered the same person as a newly enrolled one.
	DefaultMergeSimilarity = 0.7
)

// Persisted index layout
const (
	// VectorsFile holds the gob-encoded embedding rows.
	VectorsFile = "faces.vec"

	// LabelsFile holds the row-aligned JSON array of labels.
	LabelsFile = "labels.json"

	vectorFileVersion = 1
)
