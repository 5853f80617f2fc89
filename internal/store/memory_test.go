package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/insitu-feed-adapter/internal/feed"
)

var station = feed.StationRef{DatasetID: "cscWT", StationID: "44004"}

func obsAt(ref feed.StationRef, ts time.Time, value string) feed.Observation {
	return feed.Observation{Station: ref, Longitude: -70.43, Latitude: 38.48, Time: ts, Value: value}
}

func TestMemoryStoreLatestAndRange(t *testing.T) {
	s := NewMemoryStore(10, 0)
	base := time.Date(2007, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.GetLatest(station)
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < 3; i++ {
		s.SaveObservation(obsAt(station, base.Add(time.Duration(i)*time.Hour), "24.1"))
	}

	latest, err := s.GetLatest(station)
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Hour), latest.Time)

	got, err := s.GetRange(station, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = s.GetRange(station, base.Add(10*time.Hour), base.Add(11*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIgnoresStaleObservations(t *testing.T) {
	s := NewMemoryStore(10, 0)
	base := time.Date(2007, 6, 1, 12, 0, 0, 0, time.UTC)

	s.SaveObservation(obsAt(station, base, "1"))
	s.SaveObservation(obsAt(station, base, "2"))
	s.SaveObservation(obsAt(station, base.Add(-time.Hour), "3"))

	got, err := s.GetRange(station, base.Add(-24*time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Value)
}

func TestMemoryStoreRetention(t *testing.T) {
	s := NewMemoryStore(2, time.Hour)
	now := time.Date(2007, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.SaveObservation(obsAt(station, now.Add(-3*time.Hour), "old"))
	s.SaveObservation(obsAt(station, now.Add(-2*time.Hour), "older"))

	// Everything is past maxAge, but the newest observation stays.
	latest, err := s.GetLatest(station)
	require.NoError(t, err)
	assert.Equal(t, "older", latest.Value)

	s.SaveObservation(obsAt(station, now.Add(-30*time.Minute), "a"))
	s.SaveObservation(obsAt(station, now, "b"))

	got, err := s.GetRange(station, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Value)
	assert.Equal(t, "b", got[1].Value)
}

func TestMemoryStoreStations(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ts := time.Date(2007, 6, 1, 12, 0, 0, 0, time.UTC)

	s.SaveObservation(obsAt(feed.StationRef{DatasetID: "cscWT", StationID: "b"}, ts, "1"))
	s.SaveObservation(obsAt(feed.StationRef{DatasetID: "cscWT", StationID: "a"}, ts, "1"))
	s.SaveObservation(obsAt(feed.StationRef{DatasetID: "other", StationID: "c"}, ts, "1"))

	assert.Equal(t, []string{"a", "b"}, s.Stations("cscWT"))
	assert.Empty(t, s.Stations("missing"))
}
