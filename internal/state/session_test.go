package state

import "testing"

func TestUnreadTrackerPaths(t *testing.T) {
	tr := NewUnreadTracker()
	tr.Increment("c1")
	tr.Increment("c1")
	tr.Increment("c2")

	if got := tr.Count("c1"); got != 2 {
		t.Fatalf("c1 count = %d", got)
	}

	tr.MarkActive("c1")
	if got := tr.Count("c1"); got != 0 {
		t.Fatalf("c1 count after mark active = %d", got)
	}
	if got := tr.Count("c2"); got != 1 {
		t.Fatalf("c2 count disturbed: %d", got)
	}

	counts := tr.Counts()
	if len(counts) != 1 || counts["c2"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestSessionEpochFencesStaleWork(t *testing.T) {
	s := NewSession()
	epoch := s.Begin("u1")
	if !s.Current(epoch) {
		t.Fatal("fresh epoch not current")
	}

	// A background fetch started under the old epoch must be dropped once
	// a new session begins.
	s.End()
	if s.Current(epoch) {
		t.Fatal("stale epoch still current after End")
	}

	next := s.Begin("u2")
	if s.Current(epoch) {
		t.Fatal("stale epoch current after new Begin")
	}
	if !s.Current(next) {
		t.Fatal("new epoch not current")
	}
	if s.UserID() != "u2" {
		t.Fatalf("user = %q", s.UserID())
	}
}

func TestSessionActiveConversation(t *testing.T) {
	s := NewSession()
	s.Begin("u1")
	s.SetActive("c1")
	if s.ActiveID() != "c1" {
		t.Fatalf("active = %q", s.ActiveID())
	}

	// Begin and End both reset the open conversation.
	s.End()
	if s.ActiveID() != "" {
		t.Fatalf("active after End = %q", s.ActiveID())
	}
	s.Begin("u1")
	s.SetActive("c2")
	s.Begin("u2")
	if s.ActiveID() != "" {
		t.Fatalf("active after re-Begin = %q", s.ActiveID())
	}
}
