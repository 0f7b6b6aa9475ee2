// Package jobs holds the job model shared by the store, the pipeline and the API.
package jobs

// Status is a job lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusUploading   Status = "uploading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Stage-boundary progress percentages.
const (
	ProgressDownloading = 10
	ProgressProcessing  = 30
	ProgressTransformed = 60
	ProgressUploading   = 70
	ProgressCompleted   = 100
)

var statusOrder = map[Status]int{
	StatusPending:     0,
	StatusDownloading: 1,
	StatusProcessing:  2,
	StatusUploading:   3,
	StatusCompleted:   4,
	StatusFailed:      4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Transitions only move forward; a non-terminal job may fail at any point
// and may stay in its current status to report progress.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusFailed || from == to {
		return true
	}
	return statusOrder[to] > statusOrder[from]
}

// NonTerminal lists statuses an active or queued job can be in.
func NonTerminal() []Status {
	return []Status{StatusPending, StatusDownloading, StatusProcessing, StatusUploading}
}
