package idgen

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestTimeOrdered(t *testing.T) {
	t.Run("produces uuid v7", func(t *testing.T) {
		id, err := TimeOrdered(1).NewID()
		if err != nil {
			t.Fatalf("NewID() unexpected error: %v", err)
		}
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("NewID() = %q is not a uuid: %v", id, err)
		}
		if u.Version() != 7 {
			t.Errorf("version = %d, want 7", u.Version())
		}
	})

	t.Run("ids sort in creation order", func(t *testing.T) {
		gen := TimeOrdered(0)
		ids := make([]string, 20)
		for i := range ids {
			id, err := gen.NewID()
			if err != nil {
				t.Fatalf("NewID() unexpected error: %v", err)
			}
			ids[i] = id
		}
		if !sort.StringsAreSorted(ids) {
			t.Errorf("ids not time ordered: %v", ids)
		}
	})

	t.Run("negative retries are clamped", func(t *testing.T) {
		if g := TimeOrdered(-3).(timeOrdered); g.retries != 0 {
			t.Errorf("retries = %d, want 0", g.retries)
		}
	})
}

func TestSequence(t *testing.T) {
	seq := NewSequence("ev")

	first, _ := seq.NewID()
	second, _ := seq.NewID()
	if first != "ev-1" || second != "ev-2" {
		t.Errorf("ids = %q, %q, want ev-1, ev-2", first, second)
	}

	t.Run("concurrent callers never share an id", func(t *testing.T) {
		seq := NewSequence("c")
		var (
			mu   sync.Mutex
			seen = map[string]bool{}
			wg   sync.WaitGroup
		)
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, _ := seq.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		if len(seen) != 50 {
			t.Errorf("distinct ids = %d, want 50", len(seen))
		}
	})
}
