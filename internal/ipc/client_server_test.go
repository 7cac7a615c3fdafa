package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// serve runs handler on a fresh socket until the test ends.
func serve(t *testing.T, handler HandlerFunc) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hifz.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return path
}

// rawServer accepts one connection and lets reply misbehave on it.
func rawServer(t *testing.T, reply func(net.Conn)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hifz.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reply(conn)
	}()
	return path
}

func TestSendRoundTrip(t *testing.T) {
	path := serve(t, func(_ context.Context, req Request) Response {
		require.Equal(t, CommandStatus, req.Command)
		return Response{OK: true, State: "listening", Message: "4/15 words", Progress: 0.25, Verse: 3}
	})

	resp, err := Send(context.Background(), path, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, Response{OK: true, State: "listening", Message: "4/15 words", Progress: 0.25, Verse: 3}, resp)
}

func TestSendFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply func(net.Conn)
		want  string
	}{
		{
			name: "garbage response",
			reply: func(c net.Conn) {
				_, _ = readLine(c)
				_, _ = c.Write([]byte("not-json\n"))
			},
			want: "decode response",
		},
		{
			name:  "closed before reply",
			reply: func(c net.Conn) { _, _ = readLine(c) },
			want:  "read response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := rawServer(t, tc.reply)
			_, err := Send(context.Background(), path, Request{Command: CommandStatus}, 200*time.Millisecond)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
			require.NotErrorIs(t, err, ErrNoOwner)
		})
	}
}

func TestSendWithoutOwner(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "hifz.sock")
	_, err := Send(context.Background(), missing, Request{Command: CommandStatus}, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNoOwner)

	stale := filepath.Join(t.TempDir(), "hifz.sock")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o600))
	_, err = Send(context.Background(), stale, Request{Command: CommandStatus}, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNoOwner)
}

func TestForward(t *testing.T) {
	path := serve(t, func(_ context.Context, req Request) Response {
		if req.Command == CommandReset {
			return Failed("listening", "cannot reset while listening")
		}
		return Response{OK: true, State: "idle", Message: req.Command + " ok"}
	})

	resp, handled, err := Forward(context.Background(), path, CommandToggle, 200*time.Millisecond)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "toggle ok", resp.Message)

	resp, handled, err = Forward(context.Background(), path, CommandReset, 200*time.Millisecond)
	require.True(t, handled)
	require.EqualError(t, err, "cannot reset while listening")
	require.Equal(t, "listening", resp.State)

	_, handled, err = Forward(context.Background(), filepath.Join(t.TempDir(), "none.sock"), CommandStop, 100*time.Millisecond)
	require.False(t, handled)
	require.NoError(t, err)

	silent := rawServer(t, func(c net.Conn) { _, _ = readLine(c) })
	_, handled, err = Forward(context.Background(), silent, CommandStatus, 100*time.Millisecond)
	require.True(t, handled)
	require.ErrorContains(t, err, `forward command "status"`)
}

func TestServeRejectsMalformedRequest(t *testing.T) {
	path := serve(t, func(context.Context, Request) Response {
		t.Error("handler must not run for a malformed request")
		return Response{OK: true}
	})

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := readLine(conn)
	require.NoError(t, err)
	require.Contains(t, string(line), `"ok":false`)
	require.Contains(t, string(line), "decode request")
}

func TestProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hifz.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			return Response{OK: true, State: "idle"}
		}))
	}()

	alive, err := Probe(context.Background(), path, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-done)

	alive, err = Probe(context.Background(), path, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestFailedFormatsOnlyWithArgs(t *testing.T) {
	require.Equal(t, Response{State: "idle", Error: "100% done"}, Failed("idle", "100% done"))
	require.Equal(t, "unknown command: x", Failed("", "unknown command: %s", "x").Error)
}
