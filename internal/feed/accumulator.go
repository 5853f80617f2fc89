package feed

import (
	"math"
	"strconv"
	"strings"
)

// Tag paths of the microWFS GML response.
const (
	rootTag        = "gml:FeatureCollection"
	groupPath      = "<gml:FeatureCollection><gml:featureMember><ioos:insituTimeSeries>"
	groupEndPath   = "<gml:FeatureCollection><gml:featureMember></ioos:insituTimeSeries>"
	sensorPath     = groupPath + "</ioos:sensor>"
	obsNamePath    = groupPath + "</ioos:observationName>"
	verticalPath   = groupPath + "</ioos:verticalPosition>"
	positionPath   = groupPath + "<ioos:horizontalPosition><gml:Point></gml:pos>"
	obsTimePath    = groupPath + "<ioos:tsEvent><ioos:TSMeasurement></ioos:obsDateTime>"
	obsValuePath   = groupPath + "<ioos:tsEvent><ioos:TSMeasurement></ioos:observation>"
	tsEventEndPath = groupPath + "</ioos:tsEvent>"
)

type action uint8

const (
	actIgnore action = iota
	actGroupStart
	actSetStationID
	actCheckVariable
	actSetAltitude
	actSetPosition
	actSetTimestamp
	actEmitValue
	actClearTimestamp
	actClearGroup
)

var actions = map[string]action{
	groupPath:      actGroupStart,
	sensorPath:     actSetStationID,
	obsNamePath:    actCheckVariable,
	verticalPath:   actSetAltitude,
	positionPath:   actSetPosition,
	obsTimePath:    actSetTimestamp,
	obsValuePath:   actEmitValue,
	tsEventEndPath: actClearTimestamp,
	groupEndPath:   actClearGroup,
}

// pendingRecord holds the values of the row being assembled. NaN and the
// empty string mean unset.
type pendingRecord struct {
	lon, lat, alt float64
	time          string
	stationID     string
}

func emptyRecord() pendingRecord {
	return pendingRecord{lon: math.NaN(), lat: math.NaN(), alt: math.NaN()}
}

// missing names an unset field, or "" if the record is complete. When
// several are unset the last in column order is reported.
func (p *pendingRecord) missing() string {
	switch {
	case p.stationID == "":
		return "station_id"
	case p.time == "":
		return "time"
	case math.IsNaN(p.alt):
		return "altitude"
	case math.IsNaN(p.lat):
		return "latitude"
	case math.IsNaN(p.lon):
		return "longitude"
	}
	return ""
}

// Accumulator assembles rows from tag events. Station position and id
// persist across observations until the time series ends; the timestamp
// persists until its tsEvent ends.
type Accumulator struct {
	variable string
	inGroup  bool
	pending  pendingRecord
}

// NewAccumulator returns an accumulator expecting observations of variable.
func NewAccumulator(variable string) *Accumulator {
	return &Accumulator{variable: variable, pending: emptyRecord()}
}

// InGroup reports whether a time series is open.
func (a *Accumulator) InGroup() bool {
	return a.inGroup
}

// Handle applies ev. When ev completes an observation the row is returned
// with ok set.
func (a *Accumulator) Handle(ev TagEvent) (row Row, ok bool, err error) {
	p := &a.pending

	switch actions[ev.Path] {
	case actGroupStart:
		a.inGroup = true

	case actSetStationID:
		p.stationID = ev.Content

	case actCheckVariable:
		if ev.Content != a.variable {
			return Row{}, false, recordError(ev.Line,
				"<ioos:observationName>=%s should have been %s", ev.Content, a.variable)
		}

	case actSetAltitude:
		alt, valid := parseFloat(ev.Content)
		if !valid {
			return Row{}, false, recordError(ev.Line, "invalid <ioos:verticalPosition>=%s", ev.Content)
		}
		p.alt = alt

	case actSetPosition:
		// "lat lon"
		fields := strings.Fields(ev.Content)
		if len(fields) != 2 {
			return Row{}, false, recordError(ev.Line, "invalid <gml:Point>=%s", ev.Content)
		}
		lat, latOK := parseFloat(fields[0])
		lon, lonOK := parseFloat(fields[1])
		if !latOK || !lonOK {
			return Row{}, false, recordError(ev.Line, "invalid <gml:Point>=%s", ev.Content)
		}
		p.lat, p.lon = lat, lon

	case actSetTimestamp:
		p.time = ev.Content

	case actEmitValue:
		if field := p.missing(); field != "" {
			return Row{}, false, recordError(ev.Line, "the %s value wasn't set in the XML response", field)
		}
		return Row{
			Lon:       p.lon,
			Lat:       p.lat,
			Alt:       p.alt,
			Time:      p.time,
			StationID: p.stationID,
			Value:     ev.Content,
		}, true, nil

	case actClearTimestamp:
		p.time = ""

	case actClearGroup:
		a.pending = emptyRecord()
		a.inGroup = false
	}

	return Row{}, false, nil
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
