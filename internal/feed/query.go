package feed

import (
	"fmt"
	"math"
	"time"

	"github.com/i474232898/insitu-feed-adapter/internal/dataset"
)

// Interval is a numeric range in destination units. NaN marks an unset bound.
type Interval struct {
	Min float64
	Max float64
}

// Unbounded returns an interval with both bounds unset.
func Unbounded() Interval {
	return Interval{Min: math.NaN(), Max: math.NaN()}
}

// TimeInterval is a time range. A zero time marks an unset bound.
type TimeInterval struct {
	Min time.Time
	Max time.Time
}

// RangeQuery is the bounding box and time window a caller asks for.
type RangeQuery struct {
	Lon  Interval
	Lat  Interval
	Alt  Interval
	Time TimeInterval
}

// NewRangeQuery returns a query with every bound unset.
func NewRangeQuery() RangeQuery {
	return RangeQuery{Lon: Unbounded(), Lat: Unbounded(), Alt: Unbounded()}
}

// Query is a range query plus the output columns the caller wants.
// An empty Columns slice selects all columns.
type Query struct {
	Range   RangeQuery
	Columns []string
}

// Resolve fills unset bounds from the dataset extents. An open-ended
// dataset time maximum resolves to now.
func (q RangeQuery) Resolve(ext dataset.Extents, now time.Time) (RangeQuery, error) {
	r := RangeQuery{
		Lon: resolveInterval(q.Lon, ext.LonMin, ext.LonMax),
		Lat: resolveInterval(q.Lat, ext.LatMin, ext.LatMax),
		Alt: resolveInterval(q.Alt, ext.AltMin, ext.AltMax),
		Time: TimeInterval{
			Min: q.Time.Min,
			Max: q.Time.Max,
		},
	}

	if r.Time.Min.IsZero() {
		r.Time.Min = ext.TimeMin
	}
	if r.Time.Max.IsZero() {
		r.Time.Max = ext.TimeMax
		if r.Time.Max.IsZero() {
			r.Time.Max = now.UTC()
		}
	}

	if err := r.checkResolved(); err != nil {
		return RangeQuery{}, err
	}
	return r, nil
}

// checkResolved verifies the bounds the source request needs.
// Altitude is never sent to the source, so it may stay unknown.
func (q RangeQuery) checkResolved() error {
	for _, b := range []struct {
		name string
		iv   Interval
	}{{"longitude", q.Lon}, {"latitude", q.Lat}} {
		if math.IsNaN(b.iv.Min) || math.IsNaN(b.iv.Max) {
			return fmt.Errorf("%w: %s bounds are not resolved", ErrRequestBuild, b.name)
		}
		if b.iv.Min > b.iv.Max {
			return fmt.Errorf("%w: %s min %v > max %v", ErrRequestBuild, b.name, b.iv.Min, b.iv.Max)
		}
	}

	if q.Time.Min.IsZero() || q.Time.Max.IsZero() {
		return fmt.Errorf("%w: time bounds are not resolved", ErrRequestBuild)
	}
	if q.Time.Min.After(q.Time.Max) {
		return fmt.Errorf("%w: time min %s is after max %s", ErrRequestBuild,
			q.Time.Min.Format(time.RFC3339), q.Time.Max.Format(time.RFC3339))
	}
	return nil
}

func resolveInterval(iv Interval, lo, hi float64) Interval {
	if math.IsNaN(iv.Min) {
		iv.Min = lo
	}
	if math.IsNaN(iv.Max) {
		iv.Max = hi
	}
	return iv
}
