//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Needs a running Pulse or PipeWire server with a default microphone.
func TestCaptureDefaultSourceIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sel, err := SelectDevice(ctx, "default", "default")
	require.NoError(t, err)

	capture, err := StartCapture(ctx, sel.Device)
	require.NoError(t, err)
	defer capture.Close()

	select {
	case chunk := <-capture.Chunks():
		require.NotEmpty(t, chunk)
	case <-ctx.Done():
		t.Fatal("no audio within deadline")
	}
	require.Positive(t, capture.Captured())
}
