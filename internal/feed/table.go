package feed

// Row is one fully populated observation.
type Row struct {
	Lon       float64
	Lat       float64
	Alt       float64
	Time      string
	StationID string
	Value     string
}

// Table is a column-oriented batch of rows.
type Table struct {
	Lon       []float64
	Lat       []float64
	Alt       []float64
	Time      []string
	StationID []string
	Value     []string
}

// NewTable allocates a table with room for capacity rows.
func NewTable(capacity int) *Table {
	return &Table{
		Lon:       make([]float64, 0, capacity),
		Lat:       make([]float64, 0, capacity),
		Alt:       make([]float64, 0, capacity),
		Time:      make([]string, 0, capacity),
		StationID: make([]string, 0, capacity),
		Value:     make([]string, 0, capacity),
	}
}

// Append adds r as the last row.
func (t *Table) Append(r Row) {
	t.Lon = append(t.Lon, r.Lon)
	t.Lat = append(t.Lat, r.Lat)
	t.Alt = append(t.Alt, r.Alt)
	t.Time = append(t.Time, r.Time)
	t.StationID = append(t.StationID, r.StationID)
	t.Value = append(t.Value, r.Value)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Lon)
}

// Row returns row i.
func (t *Table) Row(i int) Row {
	return Row{
		Lon:       t.Lon[i],
		Lat:       t.Lat[i],
		Alt:       t.Alt[i],
		Time:      t.Time[i],
		StationID: t.StationID[i],
		Value:     t.Value[i],
	}
}
