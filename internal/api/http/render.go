package httpapi

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/insitu-feed-adapter/internal/dataset"
	"github.com/i474232898/insitu-feed-adapter/internal/feed"
)

type rangeInfo struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type variableInfo struct {
	Name         string `json:"name"`
	SourceName   string `json:"sourceName"`
	DataType     string `json:"dataType"`
	Units        string `json:"units,omitempty"`
	LongName     string `json:"longName,omitempty"`
	StandardName string `json:"standardName,omitempty"`
}

// datasetInfo is the public description of a dataset.
type datasetInfo struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Summary             string       `json:"summary,omitempty"`
	Institution         string       `json:"institution,omitempty"`
	InfoURL             string       `json:"infoUrl,omitempty"`
	Columns             []string     `json:"columns"`
	Variable            variableInfo `json:"variable"`
	Longitude           rangeInfo    `json:"longitude"`
	Latitude            rangeInfo    `json:"latitude"`
	Altitude            rangeInfo    `json:"altitude"`
	TimeMin             time.Time    `json:"timeMin"`
	TimeMax             *time.Time   `json:"timeMax"` // null while the dataset is live
	ReloadEveryNMinutes int          `json:"reloadEveryNMinutes,omitempty"`
}

func newDatasetInfo(def *dataset.Definition) datasetInfo {
	ext := def.Extents()
	info := datasetInfo{
		ID:          def.ID,
		Title:       def.Title,
		Summary:     def.Summary,
		Institution: def.Institution,
		InfoURL:     def.InfoURL,
		Columns:     def.Columns(),
		Variable: variableInfo{
			Name:         def.VariableName(),
			SourceName:   def.Variable.SourceName,
			DataType:     def.Variable.DataType,
			Units:        def.Variable.Units,
			LongName:     def.Variable.LongName,
			StandardName: def.Variable.StandardName,
		},
		Longitude:           rangeInfo{finite(ext.LonMin), finite(ext.LonMax)},
		Latitude:            rangeInfo{finite(ext.LatMin), finite(ext.LatMax)},
		Altitude:            rangeInfo{finite(ext.AltMin), finite(ext.AltMax)},
		TimeMin:             ext.TimeMin,
		ReloadEveryNMinutes: def.ReloadEveryNMinutes,
	}
	if !ext.TimeMax.IsZero() {
		tmax := ext.TimeMax
		info.TimeMax = &tmax
	}
	return info
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// projectRows returns the requested columns of every row, with the
// variable converted to its declared data type.
func projectRows(def *dataset.Definition, t *feed.Table, columns []string) [][]any {
	rows := make([][]any, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = columnValue(def, r, col)
		}
		rows = append(rows, values)
	}
	return rows
}

func columnValue(def *dataset.Definition, r feed.Row, col string) any {
	switch col {
	case dataset.ColLongitude:
		return r.Lon
	case dataset.ColLatitude:
		return r.Lat
	case dataset.ColAltitude:
		return r.Alt
	case dataset.ColTime:
		return r.Time
	case dataset.ColStationID:
		return r.StationID
	default:
		return convertValue(def.Variable.DataType, r.Value)
	}
}

// convertValue parses s as dataType. Values that do not parse (the feed
// reports missing readings as text) become nil.
func convertValue(dataType, s string) any {
	switch dataType {
	case "float", "double":
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case "int":
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		return v
	default:
		return s
	}
}

func writeCSV(c *fiber.Ctx, columns []string, rows [][]any) error {
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")

	w := csv.NewWriter(c)
	if err := w.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NaN"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
