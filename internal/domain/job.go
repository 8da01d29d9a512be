package domain

import "time"

// JobStatus enumerates job lifecycle states. The progression is linear:
// pending, processing, then exactly one of completed or failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next follows the lifecycle.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Job pairs the batch's base asset with one outfit asset.
type Job struct {
	ID           string
	Outfit       *Asset
	Status       JobStatus
	ResultRef    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// JobIDFor derives the job identifier from its outfit asset so results stay
// traceable to their source.
func JobIDFor(outfitID string) string {
	return "job-" + outfitID
}
