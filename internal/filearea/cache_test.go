package filearea

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

type mockCatalog struct {
	loadFunc func(ctx context.Context, fileID int64) (Entry, error)
	calls    int
}

func (m *mockCatalog) LoadFileEntry(ctx context.Context, fileID int64) (Entry, error) {
	m.calls++
	return m.loadFunc(ctx, fileID)
}

func TestCachedCatalog(t *testing.T) {
	t.Run("second lookup is served from cache", func(t *testing.T) {
		next := &mockCatalog{loadFunc: func(_ context.Context, id int64) (Entry, error) {
			return Entry{ID: id, FileName: "f.bin"}, nil
		}}
		c := NewCachedCatalog(next, 8, time.Minute)

		for i := 0; i < 3; i++ {
			e, err := c.LoadFileEntry(context.Background(), 5)
			if err != nil {
				t.Fatalf("LoadFileEntry() unexpected error: %v", err)
			}
			if e.ID != 5 {
				t.Errorf("ID = %d, want 5", e.ID)
			}
		}
		if next.calls != 1 {
			t.Errorf("catalog called %d times, want 1", next.calls)
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		next := &mockCatalog{loadFunc: func(context.Context, int64) (Entry, error) {
			return Entry{}, errx.E("test", errx.NotFound, errors.New("missing"))
		}}
		c := NewCachedCatalog(next, 8, time.Minute)

		_, _ = c.LoadFileEntry(context.Background(), 1)
		_, err := c.LoadFileEntry(context.Background(), 1)
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("kind = %v, want NotFound", errx.KindOf(err))
		}
		if next.calls != 2 {
			t.Errorf("catalog called %d times, want 2", next.calls)
		}
		if n := c.cache.Len(); n != 0 {
			t.Errorf("cached entries = %d, want 0", n)
		}
	})

	t.Run("invalidate forces reload", func(t *testing.T) {
		next := &mockCatalog{loadFunc: func(_ context.Context, id int64) (Entry, error) {
			return Entry{ID: id}, nil
		}}
		c := NewCachedCatalog(next, 8, time.Minute)

		_, _ = c.LoadFileEntry(context.Background(), 1)
		c.Invalidate(1)
		_, _ = c.LoadFileEntry(context.Background(), 1)
		if next.calls != 2 {
			t.Errorf("catalog called %d times, want 2", next.calls)
		}
	})

	t.Run("entries expire after ttl", func(t *testing.T) {
		next := &mockCatalog{loadFunc: func(_ context.Context, id int64) (Entry, error) {
			return Entry{ID: id}, nil
		}}
		c := NewCachedCatalog(next, 8, 20*time.Millisecond)

		_, _ = c.LoadFileEntry(context.Background(), 1)
		time.Sleep(60 * time.Millisecond)
		_, _ = c.LoadFileEntry(context.Background(), 1)
		if next.calls != 2 {
			t.Errorf("catalog called %d times, want 2", next.calls)
		}
	})
}
