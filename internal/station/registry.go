package station

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultLimit is the maximum number of stations a registry holds unless configured otherwise.
const DefaultLimit = 25

var (
	ErrLimitReached = errors.New("maximum stations limit reached")
	ErrNotFound     = errors.New("station not found")
	ErrInvalidOrder = errors.New("order does not match the station list")
)

// Registry is the ordered station list shared by the playback loop, the web API and the
// front panel. Every method takes the registry lock; returned stations are copies.
type Registry struct {
	mu       sync.Mutex
	stations []Station
	current  int
	limit    int
}

// NewRegistry creates an empty registry holding at most limit stations.
// A non-positive limit selects DefaultLimit.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Registry{limit: limit}
}

// Replace swaps the whole list, marking every station available.
// Stations beyond the limit are dropped.
func (r *Registry) Replace(stations []Station) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(stations) > r.limit {
		log.Warn().Int("count", len(stations)).Int("limit", r.limit).Msg("Station list exceeds limit, truncating")
		stations = stations[:r.limit]
	}

	r.stations = make([]Station, len(stations))
	for i, s := range stations {
		s.Available = true
		r.stations[i] = s
	}
	r.clampCurrent()
}

// Snapshot returns a copy of the station list.
func (r *Registry) Snapshot() []Station {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Station, len(r.stations))
	copy(result, r.stations)
	return result
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stations)
}

func (r *Registry) Limit() int {
	return r.limit
}

// Remaining reports how many more stations can be added.
func (r *Registry) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit - len(r.stations)
}

// Add appends st as an available station.
func (r *Registry) Add(st Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.stations) >= r.limit {
		return ErrLimitReached
	}
	st.Available = true
	r.stations = append(r.stations, st)
	return nil
}

// Remove deletes every station called name and reports whether any was removed.
// The current index keeps pointing at the same station when it survives, otherwise
// at the station that took its place.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.stations[:0]
	newCurrent := -1
	removedBefore := 0
	for i, s := range r.stations {
		if s.Name == name {
			if i < r.current {
				removedBefore++
			}
			continue
		}
		if i == r.current {
			newCurrent = len(kept)
		}
		kept = append(kept, s)
	}

	removed := len(kept) != len(r.stations)
	clear(r.stations[len(kept):])
	r.stations = kept

	if newCurrent >= 0 {
		r.current = newCurrent
	} else {
		r.current -= removedBefore
	}
	r.clampCurrent()
	return removed
}

// Update renames and re-points the first station called orig.
func (r *Registry) Update(orig, name, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.stations {
		if r.stations[i].Name == orig {
			r.stations[i].Name = name
			r.stations[i].URL = url
			return nil
		}
	}
	return ErrNotFound
}

// Reorder rearranges the list to follow names, which must name every station exactly once.
// On any mismatch the list is left untouched.
func (r *Registry) Reorder(names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(names) != len(r.stations) {
		return ErrInvalidOrder
	}

	used := make([]bool, len(r.stations))
	reordered := make([]Station, 0, len(names))
	newCurrent := 0
	for _, name := range names {
		idx := -1
		for i, s := range r.stations {
			if !used[i] && s.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrInvalidOrder
		}
		used[idx] = true
		if idx == r.current {
			newCurrent = len(reordered)
		}
		reordered = append(reordered, r.stations[idx])
	}

	r.stations = reordered
	r.current = newCurrent
	return nil
}

// IndexOf returns the index of the first station called name, or -1.
func (r *Registry) IndexOf(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.stations {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Current returns a copy of the current station; ok is false when the list is empty.
func (r *Registry) Current() (Station, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.stations) == 0 {
		return Station{}, false
	}
	return r.stations[r.current], true
}

func (r *Registry) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetCurrent selects the station at index i. Out-of-range indexes are rejected.
func (r *Registry) SetCurrent(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.stations) {
		return false
	}
	r.current = i
	return true
}

func (r *Registry) MarkUnavailable(i int) {
	r.setAvailable(i, false)
}

func (r *Registry) MarkAvailable(i int) {
	r.setAvailable(i, true)
}

func (r *Registry) setAvailable(i int, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.stations) {
		log.Warn().Int("index", i).Int("count", len(r.stations)).Msg("Station index out of range, availability unchanged")
		return
	}
	r.stations[i].Available = available
}

// Advance moves the current index to the next available station in direction dir
// (+1 forward, -1 backward) and returns it. When no station is available the flags are
// reset and the plain neighbour of the current station is chosen, so failover never stalls.
func (r *Registry) Advance(dir int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.stations)
	if count <= 1 {
		r.current = 0
		return 0
	}

	step := 1
	if dir < 0 {
		step = -1
	}

	origin := r.current
	idx := origin
	for range count {
		idx = wrap(idx+step, count)
		if r.stations[idx].Available {
			r.current = idx
			return idx
		}
	}

	for i := range r.stations {
		r.stations[i].Available = true
	}
	r.current = wrap(origin+step, count)
	log.Info().Int("index", r.current).Msg("All stations unavailable, availability reset")
	return r.current
}

func (r *Registry) clampCurrent() {
	switch {
	case len(r.stations) == 0, r.current < 0:
		r.current = 0
	case r.current >= len(r.stations):
		r.current = len(r.stations) - 1
	}
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
