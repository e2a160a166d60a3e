// Package manifest records per-file progress of a bulk encryption run in a
// local SQLite database. The run summary is derived by counting terminal
// states here, and the manifest survives a process restart between the
// encrypt and upload phases.
package manifest

import "time"

// State is the lifecycle position of a file within a run. States only move
// forward: pending -> (skipped_empty | failed | encrypted), and encrypted
// -> (uploaded | upload_failed).
type State string

const (
	StatePending      State = "pending"
	StateSkippedEmpty State = "skipped_empty"
	StateFailed       State = "failed"
	StateEncrypted    State = "encrypted"
	StateUploaded     State = "uploaded"
	StateUploadFailed State = "upload_failed"
)

type Run struct {
	ID        string
	RootDir   string
	StartedAt time.Time
}

// FileRecord tracks one source file discovered during traversal. Detail
// holds the failing phase and error text for failed states, empty otherwise.
type FileRecord struct {
	RunID  string
	Path   string
	Size   int64
	State  State
	Detail string
}
