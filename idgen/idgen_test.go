package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7_Version(t *testing.T) {
	id := UUIDv7()()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("parse %q: %v", id, err)
	}
	if u.Version() != 7 {
		t.Fatalf("version: got %d, want 7", u.Version())
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("scr_", UUIDv7())()
	if !strings.HasPrefix(id, "scr_") || len(id) != len("scr_")+36 {
		t.Fatalf("prefixed id: got %q", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Prefixed("req_", Sequence())
	for _, want := range []string{"req_1", "req_2", "req_3"} {
		if got := gen(); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestNew_UsesDefault(t *testing.T) {
	saved := Default
	t.Cleanup(func() { Default = saved })

	Default = func() string { return "fixed" }
	if got := New(); got != "fixed" {
		t.Fatalf("got %q, want fixed", got)
	}
}
