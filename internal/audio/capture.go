package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate sent to the recognizer.
	SampleRate = 16000
	// ChunkDuration is the span of audio carried by one chunk.
	ChunkDuration = 100 * time.Millisecond

	bytesPerSample = 2 // mono s16le
	chunkBacklog   = 64
)

// ChunkBytes is the size of a full chunk at SampleRate.
var ChunkBytes = BytesFor(ChunkDuration)

// BytesFor returns the PCM byte count covering d at SampleRate.
func BytesFor(d time.Duration) int {
	return int(d*SampleRate/time.Second) * bytesPerSample
}

// DurationOf is the inverse of BytesFor.
func DurationOf(n int64) time.Duration {
	return time.Duration(n/bytesPerSample) * time.Second / SampleRate
}

// Capture streams mic audio from one Pulse source as ChunkBytes-sized chunks.
// A recitation can run for minutes, so audio is handed on and never kept.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}
	once   sync.Once

	// writers hold mu for reading; Stop takes it for writing to drain them.
	mu      sync.RWMutex
	framer  framer
	written atomic.Int64
}

// StartCapture records 16kHz mono s16 from the selected source until ctx ends
// or Stop is called.
func StartCapture(ctx context.Context, selected Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := newCapture(selected)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(c, pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(uint32(ChunkBytes)),
		pulse.RecordMediaName("hifz recitation"),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	context.AfterFunc(ctx, c.Close)
	return c, nil
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		chunks: make(chan []byte, chunkBacklog),
		done:   make(chan struct{}),
		framer: framer{size: ChunkBytes},
	}
}

func (c *Capture) Device() Device { return c.device }

// Chunks yields captured PCM. It closes once Stop has flushed the tail.
func (c *Capture) Chunks() <-chan []byte { return c.chunks }

// Captured reports how much audio Pulse has delivered so far.
func (c *Capture) Captured() time.Duration {
	return DurationOf(c.written.Load())
}

// Write receives PCM from Pulse. It returns io.EOF after Stop so the record
// stream winds down.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Checked under the lock: Stop closes chunks only after draining writers.
	select {
	case <-c.done:
		return 0, io.EOF
	default:
	}
	if len(p) == 0 {
		return 0, nil
	}

	c.written.Add(int64(len(p)))
	for _, chunk := range c.framer.push(p) {
		select {
		case c.chunks <- chunk:
		case <-c.done:
			return 0, io.EOF
		}
	}
	return len(p), nil
}

// Stop ends recording and closes Chunks after handing on any partial chunk.
// Calls after the first are no-ops.
func (c *Capture) Stop() error {
	c.once.Do(func() {
		close(c.done)
		if c.stream != nil {
			c.stream.Stop()
			c.stream.Close()
		}
		if c.client != nil {
			c.client.Close()
		}

		c.mu.Lock()
		tail := c.framer.flush()
		c.mu.Unlock()

		if len(tail) > 0 {
			select {
			case c.chunks <- tail:
			default:
			}
		}
		close(c.chunks)
	})
	return nil
}

func (c *Capture) Close() { _ = c.Stop() }

// framer cuts a byte stream into fixed-size frames. Concurrent pushes are
// serialized by its own lock since Capture only holds a read lock.
type framer struct {
	mu      sync.Mutex
	size    int
	pending []byte
}

func (f *framer) push(p []byte) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = append(f.pending, p...)

	var out [][]byte
	for len(f.pending) >= f.size {
		out = append(out, append([]byte(nil), f.pending[:f.size]...))
		f.pending = f.pending[f.size:]
	}
	if len(f.pending) == 0 {
		f.pending = nil
	}
	return out
}

func (f *framer) flush() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	tail := f.pending
	f.pending = nil
	return tail
}
