package memorystore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/kehilla-app/accounts/docstore"
)

func TestSetGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "c", "a"); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "c", "a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := s.Get(ctx, "c", "a")
	if err != nil || !ok || string(b) != `{"x":1}` {
		t.Fatalf("get: %q ok=%v err=%v", b, ok, err)
	}
	if err := s.Delete(ctx, "c", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "c", "a"); ok {
		t.Fatal("expected deleted")
	}
	// Deleting again is not an error.
	if err := s.Delete(ctx, "c", "a"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestListAndCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		if err := s.Set(ctx, "col", id, []byte(id)); err != nil {
			t.Fatalf("set %s: %v", id, err)
		}
	}
	docs, err := s.List(ctx, "col")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 || docs[0].ID != "a" || docs[2].ID != "c" {
		t.Fatalf("unexpected listing: %+v", docs)
	}
	n, err := s.Count(ctx, "col")
	if err != nil || n != 3 {
		t.Fatalf("count = %d, err %v", n, err)
	}
	if n, _ := s.Count(ctx, "other"); n != 0 {
		t.Fatalf("empty collection count = %d", n)
	}
}

func TestUpdateCreatesAndDeletes(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Update(ctx, "c", "a", func(current []byte, found bool) ([]byte, error) {
		if found {
			t.Fatal("expected absent document")
		}
		return []byte("v1"), nil
	})
	if err != nil {
		t.Fatalf("create via update: %v", err)
	}

	err = s.Update(ctx, "c", "a", func(current []byte, found bool) ([]byte, error) {
		if !found || string(current) != "v1" {
			t.Fatalf("unexpected current: %q found=%v", current, found)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("delete via update: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "c", "a"); ok {
		t.Fatal("document should be deleted")
	}
}

func TestUpdatePropagatesError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")
	if err := s.Update(ctx, "c", "a", func([]byte, bool) ([]byte, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestUpdateUnchanged(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Set(ctx, "c", "a", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Update(ctx, "c", "a", func([]byte, bool) ([]byte, error) {
		return nil, docstore.ErrUnchanged
	}); err != nil {
		t.Fatalf("unchanged should not error: %v", err)
	}
	b, _, _ := s.Get(ctx, "c", "a")
	if string(b) != "v1" {
		t.Fatalf("document should be untouched, got %q", b)
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	s := New()
	ctx := context.Background()

	const workers = 20
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = s.Update(ctx, "c", "counter", func(current []byte, found bool) ([]byte, error) {
					n := 0
					if found {
						if err := json.Unmarshal(current, &n); err != nil {
							return nil, err
						}
					}
					return json.Marshal(n + 1)
				})
			}
		}()
	}
	wg.Wait()

	b, _, _ := s.Get(ctx, "c", "counter")
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		t.Fatalf("decode counter: %v", err)
	}
	if n != workers*perWorker {
		t.Fatalf("lost updates: counter = %d, want %d", n, workers*perWorker)
	}
}
