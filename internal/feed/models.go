package feed

import (
	"time"
)

// StationRef identifies one station of one dataset.
type StationRef struct {
	DatasetID string `json:"dataset"`
	StationID string `json:"station"`
}

// Key returns a canonical string key for indexing this station in stores.
func (r StationRef) Key() string {
	return r.DatasetID + ":" + r.StationID
}

// Observation is the newest reading of a station at refresh time.
type Observation struct {
	Station   StationRef `json:"station"`
	Longitude float64    `json:"longitude"`
	Latitude  float64    `json:"latitude"`
	Altitude  float64    `json:"altitude"`
	Time      time.Time  `json:"time"` // always UTC
	Value     string     `json:"value"`

	// RefreshedAt is when the observation was pulled from the source.
	RefreshedAt time.Time `json:"refreshedAt"`
}
