package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(i int) Row {
	return Row{Lon: -70.43, Lat: 38.48, Time: "2007-06-01T12:50:00Z", StationID: "A", Value: strconv.Itoa(i)}
}

func TestSinkChunkCount(t *testing.T) {
	ctx := context.Background()
	for k := 1; k <= 5; k++ {
		for n := 0; n <= 12; n++ {
			t.Run(fmt.Sprintf("n=%d,k=%d", n, k), func(t *testing.T) {
				c := &recordingConsumer{}
				s := NewSink(c, k)
				for i := 0; i < n; i++ {
					stop, err := s.Accept(ctx, row(i))
					require.NoError(t, err)
					require.False(t, stop)
				}
				require.NoError(t, s.Finish(ctx))

				want := (n + k - 1) / k
				if n == 0 {
					want = 1
				}
				assert.Len(t, c.sizes, want)
				assert.Equal(t, want, s.Chunks())
				assert.Len(t, c.rows, n)
				for _, size := range c.sizes {
					assert.LessOrEqual(t, size, k)
				}
				for i, r := range c.rows {
					assert.Equal(t, strconv.Itoa(i), r.Value, "row order")
				}
			})
		}
	}
}

func TestSinkStopsWhenConsumerAsks(t *testing.T) {
	ctx := context.Background()
	c := &recordingConsumer{stopAfter: 1}
	s := NewSink(c, 2)

	var stopped bool
	for i := 0; i < 5 && !stopped; i++ {
		var err error
		stopped, err = s.Accept(ctx, row(i))
		require.NoError(t, err)
	}
	require.True(t, stopped)
	assert.True(t, s.Stopped())
	assert.Equal(t, 2, s.Rows(), "row that triggered the flush is dropped")

	stop, err := s.Accept(ctx, row(9))
	require.NoError(t, err)
	assert.True(t, stop)

	require.NoError(t, s.Finish(ctx))
	assert.Equal(t, []int{2, 0}, c.sizes)
}

type failingConsumer struct{ err error }

func (f failingConsumer) AcceptChunk(context.Context, *Table) (bool, error) { return false, f.err }
func (f failingConsumer) ShouldStop() bool                                  { return false }

func TestSinkConsumerError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	s := NewSink(failingConsumer{err: boom}, 1)

	_, err := s.Accept(ctx, row(0))
	require.NoError(t, err)
	_, err = s.Accept(ctx, row(1))
	assert.ErrorIs(t, err, boom)
}

func TestNewSinkDefaultThreshold(t *testing.T) {
	s := NewSink(&recordingConsumer{}, 0)
	assert.Equal(t, DefaultChunkSize, s.threshold)
}
