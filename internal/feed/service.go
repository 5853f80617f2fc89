package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/i474232898/insitu-feed-adapter/internal/dataset"
)

// ErrUnknownDataset is returned for dataset ids the service does not serve.
var ErrUnknownDataset = errors.New("unknown dataset")

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveObservation(obs Observation)
	GetLatest(ref StationRef) (Observation, error)
	GetRange(ref StationRef, from, to time.Time) ([]Observation, error)
	Stations(datasetID string) []string
}

// ServiceOptions tune a Service.
type ServiceOptions struct {
	// RefreshWindow is how far back Refresh looks for new observations.
	RefreshWindow time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Service routes queries to dataset adapters and keeps the latest
// observation of every station in a store.
type Service struct {
	store    Store
	adapters map[string]*Adapter
	ids      []string
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(store Store, adapters []*Adapter, opts ServiceOptions) *Service {
	s := &Service{
		store:    store,
		adapters: make(map[string]*Adapter, len(adapters)),
		window:   opts.RefreshWindow,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	for _, a := range adapters {
		id := a.Dataset().ID
		s.adapters[id] = a
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)

	if s.window <= 0 {
		s.window = 2 * time.Hour
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Datasets returns the served dataset definitions ordered by id.
func (s *Service) Datasets() []*dataset.Definition {
	defs := make([]*dataset.Definition, 0, len(s.ids))
	for _, id := range s.ids {
		defs = append(defs, s.adapters[id].Dataset())
	}
	return defs
}

// Dataset returns the definition of dataset id.
func (s *Service) Dataset(id string) (*dataset.Definition, error) {
	a, ok := s.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, id)
	}
	return a.Dataset(), nil
}

// Query streams the rows of dataset id matching q to c.
func (s *Service) Query(ctx context.Context, id string, q Query, c Consumer) (Result, error) {
	a, ok := s.adapters[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownDataset, id)
	}
	return a.Fetch(ctx, q, c)
}

// Refresh fetches the last RefreshWindow of dataset id and stores the newest
// observation of each station seen.
func (s *Service) Refresh(ctx context.Context, id string) error {
	a, ok := s.adapters[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, id)
	}

	now := s.now().UTC()
	q := Query{Range: NewRangeQuery()}
	q.Range.Time = TimeInterval{Min: now.Add(-s.window), Max: now}

	latest := newLatestByStation()
	if _, err := a.Fetch(ctx, q, latest); err != nil {
		return fmt.Errorf("refresh %s: %w", id, err)
	}

	if latest.skipped > 0 {
		s.logger.Warn("rows with unparseable time skipped", "dataset", id, "count", latest.skipped)
	}
	if len(latest.rows) == 0 {
		// Keep the last good observations.
		s.logger.Info("no observations in refresh window", "dataset", id, "window", s.window)
		return nil
	}

	for station, r := range latest.rows {
		s.store.SaveObservation(Observation{
			Station:     StationRef{DatasetID: id, StationID: station},
			Longitude:   r.Lon,
			Latitude:    r.Lat,
			Altitude:    r.Alt,
			Time:        latest.times[station],
			Value:       r.Value,
			RefreshedAt: now,
		})
	}
	s.logger.Info("refreshed latest observations", "dataset", id, "stations", len(latest.rows))
	return nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(ref StationRef) (Observation, error) {
	if _, ok := s.adapters[ref.DatasetID]; !ok {
		return Observation{}, fmt.Errorf("%w: %s", ErrUnknownDataset, ref.DatasetID)
	}
	return s.store.GetLatest(ref)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ref StationRef, from, to time.Time) ([]Observation, error) {
	if _, ok := s.adapters[ref.DatasetID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, ref.DatasetID)
	}
	return s.store.GetRange(ref, from, to)
}

// Stations lists the stations with stored observations for dataset id.
func (s *Service) Stations(id string) ([]string, error) {
	if _, ok := s.adapters[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, id)
	}
	return s.store.Stations(id), nil
}

// latestByStation keeps the newest row per station.
type latestByStation struct {
	rows    map[string]Row
	times   map[string]time.Time
	skipped int
}

func newLatestByStation() *latestByStation {
	return &latestByStation{
		rows:  make(map[string]Row),
		times: make(map[string]time.Time),
	}
}

func (l *latestByStation) AcceptChunk(_ context.Context, chunk *Table) (bool, error) {
	for i := 0; i < chunk.Len(); i++ {
		r := chunk.Row(i)
		ts, err := time.Parse(time.RFC3339, r.Time)
		if err != nil {
			l.skipped++
			continue
		}
		ts = ts.UTC()
		if prev, ok := l.times[r.StationID]; ok && !ts.After(prev) {
			continue
		}
		l.rows[r.StationID] = r
		l.times[r.StationID] = ts
	}
	return true, nil
}

func (l *latestByStation) ShouldStop() bool { return false }
