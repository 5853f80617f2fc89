package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/insitu-feed-adapter/internal/common"
	"github.com/i474232898/insitu-feed-adapter/internal/feed"
	"github.com/i474232898/insitu-feed-adapter/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. maxRows caps
// the rows of a single data response.
func RegisterRoutes(app *fiber.App, service *feed.Service, maxRows int) {
	v1 := app.Group("/api/v1")

	v1.Get("/datasets", func(c *fiber.Ctx) error {
		defs := service.Datasets()
		out := make([]datasetInfo, 0, len(defs))
		for _, def := range defs {
			out = append(out, newDatasetInfo(def))
		}
		return c.JSON(fiber.Map{"datasets": out})
	})

	v1.Get("/datasets/:id", func(c *fiber.Ctx) error {
		def, err := service.Dataset(c.Params("id"))
		if err != nil {
			return apiError(err)
		}
		return c.JSON(newDatasetInfo(def))
	})

	v1.Get("/datasets/:id/data", func(c *fiber.Ctx) error {
		def, err := service.Dataset(c.Params("id"))
		if err != nil {
			return apiError(err)
		}

		var req dataQuery
		if err := req.bind(c, maxRows); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Var(req.Limit, fmt.Sprintf("lte=%d", maxRows)); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxRows))
		}

		columns := req.Columns
		if len(columns) == 0 {
			columns = def.Columns()
		}

		collector := feed.NewCollector(req.Limit)
		_, err = service.Query(c.UserContext(), def.ID, feed.Query{Range: req.Range, Columns: columns}, collector)
		if err != nil {
			return apiError(err)
		}

		rows := projectRows(def, collector.Table(), columns)
		if req.Format == "csv" {
			return writeCSV(c, columns, rows)
		}
		return c.JSON(fiber.Map{
			"dataset":   def.ID,
			"columns":   columns,
			"rows":      rows,
			"truncated": collector.Full(),
		})
	})

	v1.Get("/datasets/:id/stations", func(c *fiber.Ctx) error {
		stations, err := service.Stations(c.Params("id"))
		if err != nil {
			return apiError(err)
		}
		return c.JSON(fiber.Map{"dataset": c.Params("id"), "stations": stations})
	})

	v1.Get("/datasets/:id/stations/:station/latest", func(c *fiber.Ctx) error {
		ref := stationRef(c)
		obs, err := service.GetLatest(ref)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no observation for requested station")
			}
			return apiError(err)
		}
		return c.JSON(obs)
	})

	v1.Get("/datasets/:id/stations/:station/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ref := stationRef(c)
		observations, err := service.GetRange(ref, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no observations for requested range")
			}
			return apiError(err)
		}

		return c.JSON(fiber.Map{
			"station":      ref,
			"from":         req.From,
			"to":           req.To,
			"observations": observations,
		})
	})
}

// ErrorHandler renders every handler error as a JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// apiError maps service errors to HTTP errors.
func apiError(err error) error {
	switch {
	case errors.Is(err, feed.ErrUnknownDataset):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, feed.ErrRequestBuild):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "data source timed out")
	case errors.Is(err, feed.ErrTransport),
		errors.Is(err, feed.ErrRecordValidation),
		errors.Is(err, feed.ErrUnexpectedStructure):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch data")
	}
}

func stationRef(c *fiber.Ctx) feed.StationRef {
	return feed.StationRef{DatasetID: c.Params("id"), StationID: c.Params("station")}
}

// dataQuery holds query parameters for the data endpoint.
type dataQuery struct {
	Range   feed.RangeQuery
	Columns []string
	Limit   int    `validate:"gte=1"`
	Format  string `validate:"oneof=json csv"`
}

func (q *dataQuery) bind(c *fiber.Ctx, maxRows int) error {
	q.Range = feed.NewRangeQuery()

	bounds := []struct {
		name string
		dst  *float64
	}{
		{"minLon", &q.Range.Lon.Min},
		{"maxLon", &q.Range.Lon.Max},
		{"minLat", &q.Range.Lat.Min},
		{"maxLat", &q.Range.Lat.Max},
		{"minAlt", &q.Range.Alt.Min},
		{"maxAlt", &q.Range.Alt.Max},
	}
	for _, b := range bounds {
		s := c.Query(b.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid %s: %q", b.name, s)
		}
		*b.dst = v
	}

	for name, dst := range map[string]*time.Time{"from": &q.Range.Time.Min, "to": &q.Range.Time.Max} {
		s := c.Query(name)
		if s == "" {
			continue
		}
		ts, err := parseTime(s)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = ts
	}

	q.Columns = common.SplitList(c.Query("columns"))

	q.Limit = maxRows
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid limit: %q", s)
		}
		q.Limit = n
	}

	q.Format = c.Query("format")
	if q.Format == "" {
		q.Format = "json"
		if common.HasAny(c.Get(fiber.HeaderAccept), "text/csv") {
			q.Format = "csv"
		}
	}
	return nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
