package feed

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	q := NewRangeQuery()
	q.Lon = Interval{Min: -72, Max: -69}
	q.Lat = Interval{Min: 32, Max: 42.3}
	q.Time = TimeInterval{
		Min: time.Date(2007, 6, 1, 12, 0, 0, 0, time.UTC),
		Max: time.Date(2007, 6, 1, 14, 0, 0, 0, time.UTC),
	}

	req, err := BuildRequest(q, "waterTemperature")
	require.NoError(t, err)
	assert.Equal(t,
		"&BBOX=-69,32,-72,42.3&TIME=2007-06-01T12:00:00Z,2007-06-01T14:00:00Z&TYPENAME=waterTemperature",
		string(req))
	assert.Equal(t, "http://example.com/wfs?X=1"+string(req), req.URL("http://example.com/wfs?X=1"))
}

func TestBuildRequestConvertsTimesToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	q := NewRangeQuery()
	q.Lon = Interval{Min: 0, Max: 1}
	q.Lat = Interval{Min: 0, Max: 1}
	q.Time = TimeInterval{
		Min: time.Date(2007, 6, 1, 7, 0, 0, 0, est),
		Max: time.Date(2007, 6, 1, 9, 0, 0, 0, est),
	}

	req, err := BuildRequest(q, "v")
	require.NoError(t, err)
	assert.Contains(t, string(req), "&TIME=2007-06-01T12:00:00Z,2007-06-01T14:00:00Z&")
}

func TestBuildRequestBBoxOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2007, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		lon := []float64{rng.Float64()*360 - 180, rng.Float64()*360 - 180}
		lat := []float64{rng.Float64()*180 - 90, rng.Float64()*180 - 90}
		q := NewRangeQuery()
		q.Lon = Interval{Min: math.Min(lon[0], lon[1]), Max: math.Max(lon[0], lon[1])}
		q.Lat = Interval{Min: math.Min(lat[0], lat[1]), Max: math.Max(lat[0], lat[1])}
		start := base.Add(time.Duration(rng.Intn(1e6)) * time.Second)
		q.Time = TimeInterval{Min: start, Max: start.Add(time.Duration(rng.Intn(1e5)) * time.Second)}

		req, err := BuildRequest(q, "waterTemperature")
		require.NoError(t, err)

		params := parseParams(t, string(req))
		bbox := strings.Split(params["BBOX"], ",")
		require.Len(t, bbox, 4)
		want := []float64{q.Lon.Max, q.Lat.Min, q.Lon.Min, q.Lat.Max}
		for j, s := range bbox {
			v, err := strconv.ParseFloat(s, 64)
			require.NoError(t, err)
			assert.InDelta(t, want[j], v, 1e-6)
		}

		times := strings.Split(params["TIME"], ",")
		require.Len(t, times, 2)
		assert.Equal(t, q.Time.Min.Format("2006-01-02T15:04:05")+"Z", times[0])
		assert.Equal(t, q.Time.Max.Format("2006-01-02T15:04:05")+"Z", times[1])
		assert.Equal(t, "waterTemperature", params["TYPENAME"])
	}
}

func TestBuildRequestRejectsUnresolved(t *testing.T) {
	_, err := BuildRequest(NewRangeQuery(), "v")
	assert.ErrorIs(t, err, ErrRequestBuild)

	q := NewRangeQuery()
	q.Lon = Interval{Min: 0, Max: 1}
	q.Lat = Interval{Min: 0, Max: 1}
	_, err = BuildRequest(q, "v")
	assert.ErrorIs(t, err, ErrRequestBuild, "time bounds missing")

	q.Time = TimeInterval{Min: time.Unix(10, 0), Max: time.Unix(20, 0)}
	_, err = BuildRequest(q, "")
	assert.ErrorIs(t, err, ErrRequestBuild, "variable missing")
}

func TestResolve(t *testing.T) {
	ext := testDataset(t).Extents()
	now := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)

	r, err := NewRangeQuery().Resolve(ext, now)
	require.NoError(t, err)
	assert.Equal(t, Interval{Min: -97.22, Max: -70.43}, r.Lon)
	assert.Equal(t, Interval{Min: 24.55, Max: 38.48}, r.Lat)
	assert.Equal(t, Interval{Min: 0, Max: 0}, r.Alt)
	assert.Equal(t, ext.TimeMin, r.Time.Min)
	assert.Equal(t, now, r.Time.Max)

	q := NewRangeQuery()
	q.Lon.Min = -72
	q.Time.Max = time.Date(2007, 6, 1, 14, 0, 0, 0, time.UTC)
	r, err = q.Resolve(ext, now)
	require.NoError(t, err)
	assert.Equal(t, Interval{Min: -72, Max: -70.43}, r.Lon)
	assert.Equal(t, q.Time.Max, r.Time.Max)
}

func TestResolveRejectsInvertedBounds(t *testing.T) {
	ext := testDataset(t).Extents()
	now := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)

	q := NewRangeQuery()
	q.Lat = Interval{Min: 40, Max: 30}
	_, err := q.Resolve(ext, now)
	assert.ErrorIs(t, err, ErrRequestBuild)

	q = NewRangeQuery()
	q.Time = TimeInterval{Min: now, Max: now.Add(-time.Hour)}
	_, err = q.Resolve(ext, now)
	assert.ErrorIs(t, err, ErrRequestBuild)
}

func TestFormatCoord(t *testing.T) {
	assert.Equal(t, "-69", formatCoord(-69))
	assert.Equal(t, "42.3", formatCoord(42.3))
	assert.Equal(t, "0.123457", formatCoord(0.1234567))
	assert.Equal(t, "0", formatCoord(math.Copysign(0, -1)))
}

func parseParams(t *testing.T, req string) map[string]string {
	t.Helper()
	params := make(map[string]string)
	for _, part := range strings.Split(strings.TrimPrefix(req, "&"), "&") {
		k, v, ok := strings.Cut(part, "=")
		require.True(t, ok, part)
		params[k] = v
	}
	return params
}
