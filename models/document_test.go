package models

import "testing"

func TestInflightStatuses(t *testing.T) {
	inflight := make(map[string]bool)
	for _, s := range InflightStatuses {
		inflight[s] = true
	}

	// Pending and processing documents block querying their session's
	// collection; finished ones, in either direction, must not.
	if !inflight[StatusPending] || !inflight[StatusProcessing] {
		t.Errorf("pending and processing must count as inflight, got %v", InflightStatuses)
	}
	if inflight[StatusCompleted] || inflight[StatusFailed] {
		t.Errorf("completed and failed must not count as inflight, got %v", InflightStatuses)
	}
}
