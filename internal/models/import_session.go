package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus tracks the lifecycle of an import session.
type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusCancelled ImportStatus = "cancelled"
)

// SourceFile describes the uploaded file a batch was read from.
type SourceFile struct {
	OriginalName   string `json:"original_name"`
	StoredLocation string `json:"stored_location"`
	Checksum       string `json:"checksum,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	Size           int64  `json:"size,omitempty"`
}

// RowFailure records why a single row of a batch was rejected.
type RowFailure struct {
	Row    int    `json:"row"` // 1-based position in the input sequence
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// ImportSession is the provenance record for one import batch.
type ImportSession struct {
	SessionID   uuid.UUID // UUIDv7
	OrgID       uuid.UUID
	Platform    string
	Source      SourceFile
	InitiatedBy uuid.UUID
	Status      ImportStatus

	// Aggregate counters, written once when the batch finishes
	Added    int
	Updated  int
	Rejected int
	Appended int // ledger records appended by the batch
	Failures []RowFailure

	CreatedAt  time.Time
	FinishedAt *time.Time
}
