package feed

import "context"

// DefaultChunkSize is the number of rows handed to a consumer per chunk.
const DefaultChunkSize = 128

// Consumer receives table chunks from an adapter.
//
// AcceptChunk takes ownership of the table. Returning more=false, or
// ShouldStop reporting true, asks the adapter to stop producing rows.
type Consumer interface {
	AcceptChunk(ctx context.Context, chunk *Table) (more bool, err error)
	ShouldStop() bool
}

// Sink stages rows and delivers them to a consumer in chunks.
type Sink struct {
	consumer  Consumer
	threshold int
	active    *Table
	chunks    int
	rows      int
	stopped   bool
}

// NewSink returns a sink flushing every threshold rows. A threshold below 1
// uses DefaultChunkSize.
func NewSink(consumer Consumer, threshold int) *Sink {
	if threshold < 1 {
		threshold = DefaultChunkSize
	}
	return &Sink{
		consumer:  consumer,
		threshold: threshold,
		active:    NewTable(threshold),
	}
}

// Accept stages r. It first flushes the active table if it is full; when the
// consumer then asks to stop, r is dropped and Accept returns stop=true.
func (s *Sink) Accept(ctx context.Context, r Row) (stop bool, err error) {
	if s.stopped {
		return true, nil
	}
	if err := s.flushIfDue(ctx); err != nil {
		return false, err
	}
	if s.stopped {
		return true, nil
	}
	s.active.Append(r)
	s.rows++
	return false, nil
}

// Finish delivers the active table, even when it is empty.
func (s *Sink) Finish(ctx context.Context) error {
	return s.flush(ctx)
}

// Chunks returns the number of chunks delivered so far.
func (s *Sink) Chunks() int { return s.chunks }

// Rows returns the number of rows accepted so far.
func (s *Sink) Rows() int { return s.rows }

// Stopped reports whether the consumer asked to stop.
func (s *Sink) Stopped() bool { return s.stopped }

func (s *Sink) flushIfDue(ctx context.Context) error {
	if s.active.Len() < s.threshold {
		return nil
	}
	return s.flush(ctx)
}

func (s *Sink) flush(ctx context.Context) error {
	chunk := s.active
	s.active = NewTable(s.threshold)
	s.chunks++

	more, err := s.consumer.AcceptChunk(ctx, chunk)
	if err != nil {
		return err
	}
	if !more || s.consumer.ShouldStop() {
		s.stopped = true
	}
	return nil
}
