package pipeline

import "testing"

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusInProgress, true},
		{StatusDone, true},
		{StatusFailed, true},
		{Status("queued"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"claim", StatusPending, StatusInProgress, true},
		{"complete", StatusInProgress, StatusDone, true},
		{"fail", StatusInProgress, StatusFailed, true},
		{"stale sweep", StatusInProgress, StatusPending, true},
		{"requeue", StatusFailed, StatusPending, true},
		{"skip claim", StatusPending, StatusDone, false},
		{"pending cannot fail", StatusPending, StatusFailed, false},
		{"done is terminal", StatusDone, StatusPending, false},
		{"done cannot fail", StatusDone, StatusFailed, false},
		{"failed cannot complete", StatusFailed, StatusDone, false},
		{"unknown source", Status("queued"), StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
