package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rbright/hifz/internal/align"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSegment(true)
	m.ObserveSegment(false)
	m.ObserveSegment(false)
	m.ObserveRules([]align.Rule{align.RuleExact, align.RuleExact, align.RuleFuzzy}, 2, true)
	m.ObserveRestart()
	m.ObserveSession("complete")
	m.SetProgress(0.5)
	m.RecordPublish("confirmed", nil)
	m.RecordPublish("confirmed", errors.New("broker down"))

	require.InDelta(t, 1, testutil.ToFloat64(m.Segments.WithLabelValues("true")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.Segments.WithLabelValues("false")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.TokensConfirmed.WithLabelValues("exact")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.TokensConfirmed.WithLabelValues("fuzzy")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.Skipped), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Deferrals), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Restarts), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Sessions.WithLabelValues("complete")), 0)
	require.InDelta(t, 0.5, testutil.ToFloat64(m.Progress), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.PublishTotal.WithLabelValues("confirmed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.PublishErrors.WithLabelValues("confirmed")), 0)
}

func TestNewWithNilRegistryDoesNotPanicOnRepeat(t *testing.T) {
	require.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}

func TestServerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRestart()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := NewServer(listener.Addr().String(), reg, nil)
	go func() { done <- srv.serve(ctx, listener) }()

	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get("http://" + listener.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), "hifz_recognizer_restarts_total 1")

	resp, err = client.Get("http://" + listener.Addr().String() + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	cancel()
	require.NoError(t, <-done)
}
