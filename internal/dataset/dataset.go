package dataset

import (
	"fmt"
	"math"
	"time"
)

// Fixed output columns. The observed variable's destination name follows them.
const (
	ColLongitude = "longitude"
	ColLatitude  = "latitude"
	ColAltitude  = "altitude"
	ColTime      = "time"
	ColStationID = "station_id"
)

// Range is an optional numeric extent in source units.
type Range struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// TimeRange holds ISO-8601 bounds. An empty Max means the dataset is still
// receiving data.
type TimeRange struct {
	Min string `yaml:"min" validate:"required"`
	Max string `yaml:"max"`
}

// Variable describes the single observed variable a feed serves.
type Variable struct {
	SourceName      string `yaml:"sourceName" validate:"required"`
	DestinationName string `yaml:"destinationName"`
	DataType        string `yaml:"dataType" validate:"required,oneof=float double int String"`
	Units           string `yaml:"units"`
	LongName        string `yaml:"longName"`
	StandardName    string `yaml:"standardName"`
	IOOSCategory    string `yaml:"ioosCategory"`
}

// Definition is one dataset entry of the datasets file.
type Definition struct {
	ID                  string    `yaml:"id" validate:"required,datasetid"`
	Title               string    `yaml:"title" validate:"required"`
	Summary             string    `yaml:"summary"`
	Institution         string    `yaml:"institution"`
	InfoURL             string    `yaml:"infoUrl" validate:"omitempty,url"`
	SourceURL           string    `yaml:"sourceUrl" validate:"required,url"`
	ReloadEveryNMinutes int       `yaml:"reloadEveryNMinutes" validate:"gte=0"`
	Longitude           Range     `yaml:"longitude"`
	Latitude            Range     `yaml:"latitude"`
	Altitude            Range     `yaml:"altitude"`
	Time                TimeRange `yaml:"time"`
	Variable            Variable  `yaml:"variable"`

	extents Extents
}

// Extents are the known bounds of a dataset. NaN marks an unknown numeric
// bound; a zero TimeMax means "now".
type Extents struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
	AltMin, AltMax float64
	TimeMin        time.Time
	TimeMax        time.Time
}

// Extents returns the parsed extents. Only valid after Load/Parse.
func (d *Definition) Extents() Extents {
	return d.extents
}

// VariableName returns the name the variable is presented under.
func (d *Definition) VariableName() string {
	if d.Variable.DestinationName != "" {
		return d.Variable.DestinationName
	}
	return d.Variable.SourceName
}

// Columns lists the output columns in table order.
func (d *Definition) Columns() []string {
	return []string{ColLongitude, ColLatitude, ColAltitude, ColTime, ColStationID, d.VariableName()}
}

// HasColumn reports whether name is one of the dataset's output columns.
func (d *Definition) HasColumn(name string) bool {
	for _, c := range d.Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// ReloadInterval returns the configured refresh period, or 0 if unset.
func (d *Definition) ReloadInterval() time.Duration {
	return time.Duration(d.ReloadEveryNMinutes) * time.Minute
}

// normalize fills defaults and parses the time extents.
func (d *Definition) normalize() error {
	if d.Variable.DestinationName == "" {
		d.Variable.DestinationName = d.Variable.SourceName
	}

	ext := Extents{
		LonMin: orDefault(d.Longitude.Min, -180),
		LonMax: orDefault(d.Longitude.Max, 180),
		LatMin: orDefault(d.Latitude.Min, -90),
		LatMax: orDefault(d.Latitude.Max, 90),
		AltMin: orDefault(d.Altitude.Min, math.NaN()),
		AltMax: orDefault(d.Altitude.Max, math.NaN()),
	}

	tmin, err := time.Parse(time.RFC3339, d.Time.Min)
	if err != nil {
		return fmt.Errorf("dataset %s: invalid time.min %q: %w", d.ID, d.Time.Min, err)
	}
	ext.TimeMin = tmin.UTC()

	if d.Time.Max != "" {
		tmax, err := time.Parse(time.RFC3339, d.Time.Max)
		if err != nil {
			return fmt.Errorf("dataset %s: invalid time.max %q: %w", d.ID, d.Time.Max, err)
		}
		ext.TimeMax = tmax.UTC()
	}

	if ext.LonMin > ext.LonMax {
		return fmt.Errorf("dataset %s: longitude min %v > max %v", d.ID, ext.LonMin, ext.LonMax)
	}
	if ext.LatMin > ext.LatMax {
		return fmt.Errorf("dataset %s: latitude min %v > max %v", d.ID, ext.LatMin, ext.LatMax)
	}

	d.extents = ext
	return nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
