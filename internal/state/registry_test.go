package state

import (
	"testing"
	"time"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

func conv(id string, created, lastAt time.Time) domain.Conversation {
	c := domain.Conversation{ID: id, Kind: domain.KindPrivate, CreatedAt: created}
	if !lastAt.IsZero() {
		c.LastMessage = "hi"
		c.LastMessageAt = lastAt
	}
	return c
}

func ids(conns []domain.Conversation) []string {
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.ID
	}
	return out
}

func TestRegistryRecencyOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := base.Add(1 * time.Minute)
	t2 := base.Add(2 * time.Minute)

	r := NewRegistry()
	r.Upsert(conv("a", base, t1))
	r.Upsert(conv("b", base, t2))
	r.Upsert(conv("c", base, time.Time{})) // never messaged: sorts by creation time

	got := ids(r.Snapshot())
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRegistryTiebreakByID(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := base.Add(time.Minute)

	r := NewRegistry()
	r.Upsert(conv("zz", base, at))
	r.Upsert(conv("aa", base, at))

	got := ids(r.Snapshot())
	if got[0] != "aa" || got[1] != "zz" {
		t.Fatalf("tiebreak order = %v, want [aa zz]", got)
	}
}

func TestRegistryTouchPromotes(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := base.Add(1 * time.Minute)
	t2 := base.Add(2 * time.Minute)

	r := NewRegistry()
	r.Upsert(conv("a", base, t1))
	r.Upsert(conv("b", base, t2))

	if !r.Touch("a", "newest", base.Add(3*time.Minute)) {
		t.Fatal("touch reported unknown conversation")
	}
	got := r.Snapshot()
	if got[0].ID != "a" {
		t.Fatalf("touched conversation not first: %v", ids(got))
	}
	if got[0].LastMessage != "newest" {
		t.Fatalf("last message = %q", got[0].LastMessage)
	}
}

func TestRegistryTouchUnknown(t *testing.T) {
	r := NewRegistry()
	if r.Touch("ghost", "x", time.Now()) {
		t.Fatal("touch claimed success on unknown conversation")
	}
}

func TestRegistryReplaceIsWholesale(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := base.Add(1 * time.Minute)

	r := NewRegistry()
	r.Upsert(conv("old", base, t1))

	t2 := base.Add(2 * time.Minute)
	r.Replace([]domain.Conversation{
		conv("n1", base, t1),
		conv("n2", base, t2),
	})

	got := ids(r.Snapshot())
	if len(got) != 2 || got[0] != "n2" || got[1] != "n1" {
		t.Fatalf("after replace: %v", got)
	}
	if _, ok := r.Get("old"); ok {
		t.Fatal("replace kept a stale entry")
	}
}

func TestRegistryUpsertOverwrites(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.Upsert(domain.Conversation{ID: "a", Name: "before", CreatedAt: base})
	r.Upsert(domain.Conversation{ID: "a", Name: "after", CreatedAt: base})

	if r.Len() != 1 {
		t.Fatalf("len = %d after upserting the same id twice", r.Len())
	}
	c, _ := r.Get("a")
	if c.Name != "after" {
		t.Fatalf("name = %q", c.Name)
	}
}
