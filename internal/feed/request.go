package feed

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// sourceTimeLayout is the microWFS TIME layout; a literal Z is appended.
const sourceTimeLayout = "2006-01-02T15:04:05"

// SourceRequest is the constraint string sent to a microWFS endpoint.
type SourceRequest string

// URL appends the request to the dataset's base endpoint. The constraint is
// not percent-encoded; the source rejects encoded BBOX/TIME values.
func (r SourceRequest) URL(base string) string {
	return base + string(r)
}

// BuildRequest translates a resolved range query into microWFS parameters.
//
// The BBOX parameter takes (maxLon, minLat, minLon, maxLat), in that order.
// Altitude is not constrained by the source.
func BuildRequest(q RangeQuery, variable string) (SourceRequest, error) {
	if variable == "" {
		return "", fmt.Errorf("%w: no source variable", ErrRequestBuild)
	}
	if err := q.checkResolved(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("&BBOX=")
	b.WriteString(formatCoord(q.Lon.Max))
	b.WriteByte(',')
	b.WriteString(formatCoord(q.Lat.Min))
	b.WriteByte(',')
	b.WriteString(formatCoord(q.Lon.Min))
	b.WriteByte(',')
	b.WriteString(formatCoord(q.Lat.Max))

	b.WriteString("&TIME=")
	b.WriteString(formatSourceTime(q.Time.Min))
	b.WriteByte(',')
	b.WriteString(formatSourceTime(q.Time.Max))

	b.WriteString("&TYPENAME=")
	b.WriteString(variable)

	return SourceRequest(b.String()), nil
}

// formatCoord prints v with at most 6 decimals and no trailing zeros.
func formatCoord(v float64) string {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func formatSourceTime(t time.Time) string {
	return t.UTC().Format(sourceTimeLayout) + "Z"
}
