package feed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/insitu-feed-adapter/internal/dataset"
)

const testDatasetYAML = `
datasets:
  - id: cscWT
    title: Buoy Data (Water Temperature)
    sourceUrl: http://example.com/microWFS.cgi?SERVICENAME=dtlservice&REQUEST=getFeature
    longitude: {min: -97.22, max: -70.43}
    latitude: {min: 24.55, max: 38.48}
    altitude: {min: 0, max: 0}
    time: {min: "2007-01-01T00:00:00Z"}
    variable:
      sourceName: waterTemperature
      destinationName: sea_water_temperature
      dataType: float
`

func testDataset(t *testing.T) *dataset.Definition {
	t.Helper()
	defs, err := dataset.Parse([]byte(testDatasetYAML))
	require.NoError(t, err)
	return defs[0]
}

type measurement struct {
	time  string
	value string
}

type series struct {
	station  string
	variable string
	alt      string
	pos      string // "lat lon"
	obs      []measurement
}

func (s series) xml() string {
	var b strings.Builder
	b.WriteString("<gml:featureMember><ioos:insituTimeSeries>\n")
	if s.station != "" {
		fmt.Fprintf(&b, "  <ioos:sensor>%s</ioos:sensor>\n", s.station)
	}
	variable := s.variable
	if variable == "" {
		variable = "waterTemperature"
	}
	fmt.Fprintf(&b, "  <ioos:observationName>%s</ioos:observationName>\n", variable)
	if s.alt != "" {
		fmt.Fprintf(&b, "  <ioos:verticalPosition>%s</ioos:verticalPosition>\n", s.alt)
	}
	if s.pos != "" {
		fmt.Fprintf(&b, "  <ioos:horizontalPosition><gml:Point><gml:pos>%s</gml:pos></gml:Point></ioos:horizontalPosition>\n", s.pos)
	}
	for _, m := range s.obs {
		b.WriteString("  <ioos:tsEvent><ioos:TSMeasurement>")
		if m.time != "" {
			fmt.Fprintf(&b, "<ioos:obsDateTime>%s</ioos:obsDateTime>", m.time)
		}
		fmt.Fprintf(&b, "<ioos:observation>%s</ioos:observation>", m.value)
		b.WriteString("</ioos:TSMeasurement></ioos:tsEvent>\n")
	}
	b.WriteString("</ioos:insituTimeSeries></gml:featureMember>\n")
	return b.String()
}

func collection(ss ...series) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<gml:FeatureCollection xmlns:gml="http://www.opengis.net/gml" xmlns:ioos="http://www.noaa.gov/ioos/0.6.1">` + "\n")
	b.WriteString("<gml:boundedBy><gml:Envelope><gml:lowerCorner>32 -72</gml:lowerCorner></gml:Envelope></gml:boundedBy>\n")
	for _, s := range ss {
		b.WriteString(s.xml())
	}
	b.WriteString("</gml:FeatureCollection>\n")
	return b.String()
}

// stationA is station "A" with two readings at two timestamps.
var stationA = series{
	station: "A",
	alt:     "0",
	pos:     "38.48 -70.43",
	obs: []measurement{
		{"2007-06-01T12:50:00Z", "24.1"},
		{"2007-06-01T13:50:00Z", "24.1"},
	},
}

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

type fakeOpener struct {
	body string
	err  error
	urls []string
	last *trackingBody
}

func (f *fakeOpener) Open(_ context.Context, url string) (io.ReadCloser, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	f.last = &trackingBody{Reader: strings.NewReader(f.body)}
	return f.last, nil
}

func (t *Table) rows() []Row {
	rows := make([]Row, t.Len())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// recordingConsumer records chunk sizes and can ask to stop after a chunk.
type recordingConsumer struct {
	sizes     []int
	rows      []Row
	stopAfter int // 0 = never
}

func (c *recordingConsumer) AcceptChunk(_ context.Context, chunk *Table) (bool, error) {
	c.sizes = append(c.sizes, chunk.Len())
	c.rows = append(c.rows, chunk.rows()...)
	return true, nil
}

func (c *recordingConsumer) ShouldStop() bool {
	return c.stopAfter > 0 && len(c.sizes) >= c.stopAfter
}
