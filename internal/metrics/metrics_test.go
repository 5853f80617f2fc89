package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/insitu-feed-adapter/internal/feed"
)

func TestOutcome(t *testing.T) {
	cases := []struct {
		res  feed.Result
		err  error
		want string
	}{
		{feed.Result{}, nil, OutcomeOK},
		{feed.Result{Stopped: true}, nil, OutcomeStopped},
		{feed.Result{}, fmt.Errorf("%w: x", feed.ErrRequestBuild), OutcomeRequestBuild},
		{feed.Result{}, fmt.Errorf("%w: x", feed.ErrTransport), OutcomeTransport},
		{feed.Result{}, &feed.ParseError{Kind: feed.ErrRecordValidation}, OutcomeRecordValidation},
		{feed.Result{}, &feed.ParseError{Kind: feed.ErrUnexpectedStructure}, OutcomeUnexpectedStructure},
		{feed.Result{}, errors.New("boom"), OutcomeOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Outcome(c.res, c.err))
	}
}

func TestFetchCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.FetchCompleted("cscWT", feed.Result{Rows: 300, Chunks: 3, Elapsed: time.Second}, nil)
	m.FetchCompleted("cscWT", feed.Result{Rows: 5, Chunks: 1}, fmt.Errorf("%w: x", feed.ErrTransport))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("cscWT", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("cscWT", OutcomeTransport)))
	assert.Equal(t, 305.0, testutil.ToFloat64(m.rows.WithLabelValues("cscWT")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.chunks.WithLabelValues("cscWT")))

	_, err = New(reg)
	assert.Error(t, err, "registering twice must fail")
}
