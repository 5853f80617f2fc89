package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/insitu-feed-adapter/internal/dataset"
)

// StreamOpener opens the response body for a source URL.
type StreamOpener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Recorder observes completed fetches.
type Recorder interface {
	FetchCompleted(datasetID string, res Result, err error)
}

// Options tune an Adapter. The zero value is usable.
type Options struct {
	ChunkSize int
	Logger    *slog.Logger
	Recorder  Recorder
	// Now is used to resolve open-ended time bounds. Defaults to time.Now.
	Now func() time.Time
}

// Result summarizes one Fetch.
type Result struct {
	URL     string
	Rows    int
	Chunks  int
	Stopped bool
	Elapsed time.Duration
}

// Adapter serves range queries for one microWFS dataset.
type Adapter struct {
	def       *dataset.Definition
	opener    StreamOpener
	chunkSize int
	logger    *slog.Logger
	recorder  Recorder
	now       func() time.Time
}

// NewAdapter creates an Adapter for def that reads through opener.
func NewAdapter(def *dataset.Definition, opener StreamOpener, opts Options) *Adapter {
	a := &Adapter{
		def:       def,
		opener:    opener,
		chunkSize: opts.ChunkSize,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		now:       opts.Now,
	}
	if a.chunkSize < 1 {
		a.chunkSize = DefaultChunkSize
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Dataset returns the adapter's dataset definition.
func (a *Adapter) Dataset() *dataset.Definition {
	return a.def
}

// Fetch runs q against the source and streams the rows to c in chunks.
//
// Chunks delivered before an error stand; no rows are produced after it.
// The consumer always receives a final chunk unless Fetch fails.
func (a *Adapter) Fetch(ctx context.Context, q Query, c Consumer) (Result, error) {
	start := time.Now()
	log := a.logger.With("dataset", a.def.ID, "invocation", uuid.NewString())

	res, err := a.fetch(ctx, q, c, log)
	res.Elapsed = time.Since(start)

	if a.recorder != nil {
		a.recorder.FetchCompleted(a.def.ID, res, err)
	}
	if err != nil {
		log.Error("fetch failed", "url", res.URL, "rows", res.Rows, "error", err)
		return res, err
	}
	log.Info("fetch done", "rows", res.Rows, "chunks", res.Chunks,
		"stopped", res.Stopped, "elapsed", res.Elapsed)
	return res, nil
}

func (a *Adapter) fetch(ctx context.Context, q Query, c Consumer, log *slog.Logger) (Result, error) {
	var res Result

	for _, col := range q.Columns {
		if !a.def.HasColumn(col) {
			return res, fmt.Errorf("%w: unknown column %q", ErrRequestBuild, col)
		}
	}

	rq, err := q.Range.Resolve(a.def.Extents(), a.now())
	if err != nil {
		return res, err
	}
	req, err := BuildRequest(rq, a.def.Variable.SourceName)
	if err != nil {
		return res, err
	}
	res.URL = req.URL(a.def.SourceURL)
	log.Debug("requesting source data", "url", res.URL)

	rc, err := a.opener.Open(ctx, res.URL)
	if err != nil {
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return res, err
	}

	stream := NewXMLTagStream(rc, rootTag)
	defer stream.Close()

	sink := NewSink(c, a.chunkSize)
	acc := NewAccumulator(a.def.Variable.SourceName)
	err = pump(ctx, stream, acc, sink)
	res.Rows = sink.Rows()
	res.Chunks = sink.Chunks()
	res.Stopped = sink.Stopped()
	if err != nil {
		log.Debug("source stream aborted", "in_time_series", acc.InGroup(), "rows", res.Rows)
		return res, err
	}
	if res.Stopped {
		log.Debug("consumer asked to stop", "rows", res.Rows)
	}

	if err := stream.Close(); err != nil {
		log.Warn("closing source stream", "error", err)
	}
	err = sink.Finish(ctx)
	res.Chunks = sink.Chunks()
	return res, err
}

// pump feeds events from stream through acc into sink until the stream is
// exhausted or the consumer asks to stop.
func pump(ctx context.Context, stream TagStream, acc *Accumulator, sink *Sink) error {
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		row, ok, err := acc.Handle(ev)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		stop, err := sink.Accept(ctx, row)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}
