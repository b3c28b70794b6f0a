package pipeline

// Status is the single source of truth for whether transcription has run
// for an uploaded file.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// CanTransition enforces the allowed status edges. failed→pending is the
// manual re-queue; in_progress→pending is the out-of-band stale-run
// sweep. The runner itself only ever walks pending→in_progress→{done,failed}.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusDone || to == StatusFailed || to == StatusPending
	case StatusFailed:
		return to == StatusPending
	default:
		return false
	}
}
