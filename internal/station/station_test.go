package station

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

func newTestRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	r := NewRegistry(0)
	for _, n := range names {
		if err := r.Add(Station{Name: n, URL: "http://example.com/" + n}); err != nil {
			t.Fatalf("Add(%q) error = %v", n, err)
		}
	}
	return r
}

func names(stations []Station) []string {
	result := make([]string, len(stations))
	for i, s := range stations {
		result[i] = s.Name
	}
	return result
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRecordsRoundTrip(t *testing.T) {
	records := []Record{{Name: "a", URL: "http://a.example"}, {Name: "b", URL: "http://b.example"}}
	stations := FromRecords(records)

	for i, s := range stations {
		if !s.Available {
			t.Errorf("FromRecords()[%d].Available = false, want true", i)
		}
	}

	back := Records(stations)
	for i := range records {
		if back[i] != records[i] {
			t.Errorf("Records()[%d] = %+v, want %+v", i, back[i], records[i])
		}
	}
}

func TestAddLimit(t *testing.T) {
	r := NewRegistry(0)
	if r.Limit() != DefaultLimit {
		t.Fatalf("Limit() = %d, want %d", r.Limit(), DefaultLimit)
	}

	for i := range DefaultLimit {
		if err := r.Add(Station{Name: fmt.Sprintf("s%d", i)}); err != nil {
			t.Fatalf("Add() #%d error = %v", i, err)
		}
	}

	err := r.Add(Station{Name: "overflow"})
	if !errors.Is(err, ErrLimitReached) {
		t.Errorf("Add() past limit error = %v, want %v", err, ErrLimitReached)
	}
	if r.Len() != DefaultLimit {
		t.Errorf("Len() = %d, want %d", r.Len(), DefaultLimit)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestReplaceTruncatesAndResetsAvailability(t *testing.T) {
	r := NewRegistry(2)
	r.Replace([]Station{{Name: "a"}, {Name: "b", Available: false}, {Name: "c"}})

	snap := r.Snapshot()
	if !equalNames(names(snap), []string{"a", "b"}) {
		t.Fatalf("Snapshot() = %v, want [a b]", names(snap))
	}
	for _, s := range snap {
		if !s.Available {
			t.Errorf("station %q not available after Replace", s.Name)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	r := newTestRegistry(t, "a", "b")
	snap := r.Snapshot()
	snap[0].Name = "mutated"

	if got := r.Snapshot()[0].Name; got != "a" {
		t.Errorf("registry changed through snapshot: first name = %q", got)
	}
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name        string
		remove      string
		current     int
		wantNames   []string
		wantCurrent int
		wantRemoved bool
	}{
		{"absent is no-op", "zz", 1, []string{"a", "b", "c"}, 1, false},
		{"before current shifts index", "a", 2, []string{"b", "c"}, 1, true},
		{"after current keeps index", "c", 0, []string{"a", "b"}, 0, true},
		{"current moves to successor", "b", 1, []string{"a", "c"}, 1, true},
		{"last current clamps", "c", 2, []string{"a", "b"}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, "a", "b", "c")
			r.SetCurrent(tt.current)

			if got := r.Remove(tt.remove); got != tt.wantRemoved {
				t.Errorf("Remove(%q) = %v, want %v", tt.remove, got, tt.wantRemoved)
			}
			if got := names(r.Snapshot()); !equalNames(got, tt.wantNames) {
				t.Errorf("names = %v, want %v", got, tt.wantNames)
			}
			if got := r.CurrentIndex(); got != tt.wantCurrent {
				t.Errorf("CurrentIndex() = %d, want %d", got, tt.wantCurrent)
			}
		})
	}
}

func TestRemoveAllLeavesValidCurrent(t *testing.T) {
	r := newTestRegistry(t, "a")
	r.Remove("a")

	if r.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", r.CurrentIndex())
	}
	if _, ok := r.Current(); ok {
		t.Error("Current() ok = true on empty registry")
	}
}

func TestUpdate(t *testing.T) {
	r := newTestRegistry(t, "a", "b")

	if err := r.Update("b", "bee", "http://bee.example/stream"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	snap := r.Snapshot()
	if snap[1].Name != "bee" || snap[1].URL != "http://bee.example/stream" {
		t.Errorf("Update() result = %+v", snap[1])
	}

	if err := r.Update("missing", "x", "http://x.example"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want %v", err, ErrNotFound)
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name      string
		order     []string
		wantErr   bool
		wantNames []string
	}{
		{"permutation", []string{"c", "a", "b"}, false, []string{"c", "a", "b"}},
		{"missing name", []string{"c", "a"}, true, []string{"a", "b", "c"}},
		{"unknown name", []string{"c", "a", "x"}, true, []string{"a", "b", "c"}},
		{"duplicate name", []string{"a", "a", "b"}, true, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, "a", "b", "c")
			r.SetCurrent(1)
			r.MarkUnavailable(2)
			before := r.Snapshot()

			err := r.Reorder(tt.order)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Reorder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("Reorder() error = %v, want %v", err, ErrInvalidOrder)
			}
			after := r.Snapshot()
			if got := names(after); !equalNames(got, tt.wantNames) {
				t.Errorf("names = %v, want %v", got, tt.wantNames)
			}
			if tt.wantErr && !slices.Equal(after, before) {
				t.Errorf("Snapshot() after failed Reorder = %+v, want %+v", after, before)
			}
			for _, st := range after {
				want := before[slices.IndexFunc(before, func(b Station) bool { return b.Name == st.Name })]
				if st != want {
					t.Errorf("station %q = %+v, want %+v", st.Name, st, want)
				}
			}
			cur, _ := r.Current()
			if cur.Name != "b" {
				t.Errorf("current station = %q, want b", cur.Name)
			}
		})
	}
}

func TestMarkAvailabilityOutOfRange(t *testing.T) {
	r := newTestRegistry(t, "a")
	r.MarkUnavailable(5)
	r.MarkUnavailable(-1)

	if !r.Snapshot()[0].Available {
		t.Error("out-of-range MarkUnavailable changed a station")
	}

	r.MarkUnavailable(0)
	if r.Snapshot()[0].Available {
		t.Error("MarkUnavailable(0) had no effect")
	}
	r.MarkAvailable(0)
	if !r.Snapshot()[0].Available {
		t.Error("MarkAvailable(0) had no effect")
	}
}

func TestAdvance(t *testing.T) {
	t.Run("empty and single", func(t *testing.T) {
		if got := NewRegistry(0).Advance(1); got != 0 {
			t.Errorf("empty Advance() = %d, want 0", got)
		}
		r := newTestRegistry(t, "a")
		r.MarkUnavailable(0)
		if got := r.Advance(-1); got != 0 {
			t.Errorf("single Advance() = %d, want 0", got)
		}
	})

	t.Run("skips unavailable", func(t *testing.T) {
		r := newTestRegistry(t, "a", "b", "c", "d")
		r.MarkUnavailable(1)
		r.MarkUnavailable(2)

		if got := r.Advance(1); got != 3 {
			t.Errorf("Advance(+1) = %d, want 3", got)
		}
		if r.CurrentIndex() != 3 {
			t.Errorf("CurrentIndex() = %d, want 3", r.CurrentIndex())
		}
	})

	t.Run("wraps backwards", func(t *testing.T) {
		r := newTestRegistry(t, "a", "b", "c")
		if got := r.Advance(-1); got != 2 {
			t.Errorf("Advance(-1) from 0 = %d, want 2", got)
		}
	})

	t.Run("returns to current when only it is available", func(t *testing.T) {
		r := newTestRegistry(t, "a", "b", "c")
		r.SetCurrent(1)
		r.MarkUnavailable(0)
		r.MarkUnavailable(2)
		if got := r.Advance(1); got != 1 {
			t.Errorf("Advance(+1) = %d, want 1", got)
		}
	})

	t.Run("all unavailable resets flags", func(t *testing.T) {
		r := newTestRegistry(t, "a", "b", "c")
		r.SetCurrent(2)
		for i := range 3 {
			r.MarkUnavailable(i)
		}

		if got := r.Advance(1); got != 0 {
			t.Errorf("Advance(+1) = %d, want 0", got)
		}
		for _, s := range r.Snapshot() {
			if !s.Available {
				t.Errorf("station %q still unavailable after full lap", s.Name)
			}
		}
	})
}

func TestSetCurrentBounds(t *testing.T) {
	r := newTestRegistry(t, "a", "b")
	if r.SetCurrent(2) {
		t.Error("SetCurrent(2) = true on two stations")
	}
	if !r.SetCurrent(1) {
		t.Error("SetCurrent(1) = false")
	}
	if r.IndexOf("b") != 1 || r.IndexOf("zz") != -1 {
		t.Errorf("IndexOf() = %d/%d, want 1/-1", r.IndexOf("b"), r.IndexOf("zz"))
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry(t, "a", "b", "c")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 100 {
				switch (i + j) % 4 {
				case 0:
					_ = r.Add(Station{Name: fmt.Sprintf("x%d-%d", i, j)})
				case 1:
					r.Remove(fmt.Sprintf("x%d-%d", i, j-1))
				case 2:
					r.Advance(1)
				default:
					_ = r.Snapshot()
				}
			}
		}(i)
	}
	wg.Wait()

	n := r.Len()
	if n > r.Limit() {
		t.Errorf("Len() = %d exceeds limit %d", n, r.Limit())
	}
	if n > 0 && (r.CurrentIndex() < 0 || r.CurrentIndex() >= n) {
		t.Errorf("CurrentIndex() = %d out of range for %d stations", r.CurrentIndex(), n)
	}
}
