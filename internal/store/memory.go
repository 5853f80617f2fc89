package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/insitu-feed-adapter/internal/feed"
)

var (
	// ErrNotFound is returned when no observation is stored for a station.
	ErrNotFound = errors.New("no observations for station")
)

var _ feed.Store = (*MemoryStore)(nil)

// ObservationHistory holds a time-ordered list of observations for a station.
type ObservationHistory struct {
	Observations []feed.Observation
}

// MemoryStore is a concurrency-safe in-memory implementation of an observation store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station key, value: history
	data map[string]*ObservationHistory
	// dataset id -> station ids
	stations map[string]map[string]struct{}

	// retention configuration
	maxHistory int           // max number of observations per station
	maxAge     time.Duration // optional max age for observations
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ObservationHistory),
		stations:   make(map[string]map[string]struct{}),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveObservation records obs for its station and enforces retention. An
// observation that is not newer than the station's latest one is ignored.
func (s *MemoryStore) SaveObservation(obs feed.Observation) {
	key := obs.Station.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ObservationHistory{}
		s.data[key] = history
	}
	if n := len(history.Observations); n > 0 && !obs.Time.After(history.Observations[n-1].Time) {
		return
	}

	ids, ok := s.stations[obs.Station.DatasetID]
	if !ok {
		ids = make(map[string]struct{})
		s.stations[obs.Station.DatasetID] = ids
	}
	ids[obs.Station.StationID] = struct{}{}

	history.Observations = append(history.Observations, obs)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Observations) > s.maxHistory {
		over := len(history.Observations) - s.maxHistory
		history.Observations = history.Observations[over:]
	}

	// Enforce retention by age; the newest observation is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Observations)-1; i++ {
			if !history.Observations[i].Time.Before(cutoff) {
				break
			}
		}
		history.Observations = history.Observations[i:]
	}
}

// GetLatest returns the most recent observation for a station.
func (s *MemoryStore) GetLatest(ref feed.StationRef) (feed.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[ref.Key()]
	if !ok || len(history.Observations) == 0 {
		return feed.Observation{}, ErrNotFound
	}
	return history.Observations[len(history.Observations)-1], nil
}

// GetRange returns all observations for a station between from and to (inclusive).
func (s *MemoryStore) GetRange(ref feed.StationRef, from, to time.Time) ([]feed.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[ref.Key()]
	if !ok || len(history.Observations) == 0 {
		return nil, ErrNotFound
	}

	var result []feed.Observation
	for _, obs := range history.Observations {
		if !obs.Time.Before(from) && !obs.Time.After(to) {
			result = append(result, obs)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Stations returns the station ids with stored observations, sorted.
func (s *MemoryStore) Stations(datasetID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.stations[datasetID]))
	for id := range s.stations[datasetID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
