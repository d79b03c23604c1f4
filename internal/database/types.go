package database

import "time"

// Match is the result of a nearest-neighbor query against the index
type Match struct {
	Row        int
	Identity   Identity
	Similarity float64
	Found      bool // false when the index is empty
}

// IdentitySummary describes one identity and how many embedding rows it owns
type IdentitySummary struct {
	Identity Identity
	Rows     int
}

// EnrollOutcome reports what an enrollment changed
type EnrollOutcome struct {
	Identity Identity
	Added    int        // rows inserted for Identity
	Merged   []Identity // Unknown identities removed as the same person
}

// Stats summarizes the index contents
type Stats struct {
	Rows              int
	KnownIdentities   int
	UnknownIdentities int
	NextUnknownSerial int
	Dim               int
	LastSavedAt       time.Time // last successful save, read from the vectors file on load
	Dirty             bool      // in-memory changes not yet persisted
}
