package registry

import (
	"testing"

	"github.com/tturner/ab-eip-client/internal/plc/session"
)

func TestGetOrCreateReturnsSameSessionForSameIdentity(t *testing.T) {
	r := New()
	id := session.Identity{Protocol: "logix", Host: "10.0.0.1", Port: 44818}

	a := r.GetOrCreate(id)
	b := r.GetOrCreate(id)
	if a != b {
		t.Fatal("expected the same *Session for the same identity")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestGetOrCreateDistinguishesIdentity(t *testing.T) {
	r := New()
	a := r.GetOrCreate(session.Identity{Protocol: "logix", Host: "10.0.0.1", Port: 44818})
	b := r.GetOrCreate(session.Identity{Protocol: "plc5", Host: "10.0.0.1", Port: 44818})
	if a == b {
		t.Fatal("expected distinct sessions for distinct identities")
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}

func TestReleaseRemovesOnlyWhenUnreferenced(t *testing.T) {
	r := New()
	id := session.Identity{Protocol: "logix", Host: "10.0.0.1", Port: 44818}
	sess := r.GetOrCreate(id)
	sess.Attach()

	r.Release(sess)
	if _, ok := r.Lookup(id); !ok {
		t.Fatal("session with a live reference must not be removed")
	}

	sess.Detach()
	r.Release(sess)
	if _, ok := r.Lookup(id); ok {
		t.Fatal("unreferenced session should have been removed")
	}
}

func TestSnapshotIsIndependentOfRegistryState(t *testing.T) {
	r := New()
	r.GetOrCreate(session.Identity{Protocol: "logix", Host: "a", Port: 1})
	r.GetOrCreate(session.Identity{Protocol: "logix", Host: "b", Port: 2})

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(snap) = %d, want 2", len(snap))
	}
	r.GetOrCreate(session.Identity{Protocol: "logix", Host: "c", Port: 3})
	if len(snap) != 2 {
		t.Fatal("snapshot should not observe later registry mutations")
	}
}
