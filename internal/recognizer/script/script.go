// Package script replays recorded recognizer output from a JSONL file.
package script

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rbright/hifz/internal/align"
	"github.com/rbright/hifz/internal/recognizer"
)

// Line is one recorded recognizer delivery. EndStream simulates the service
// closing the stream, which the session answers with a restart.
type Line struct {
	ResultIndex int    `json:"result_index"`
	Text        string `json:"text"`
	Final       bool   `json:"final"`
	EndStream   bool   `json:"end_stream,omitempty"`
}

// Recognizer replays lines across successive streams. Each Start resumes
// after the last line delivered by the previous stream.
type Recognizer struct {
	lines []Line
	delay time.Duration

	mu  sync.Mutex
	pos int
}

// New constructs a replaying recognizer.
func New(lines []Line, delay time.Duration) *Recognizer {
	return &Recognizer{lines: append([]Line(nil), lines...), delay: delay}
}

// Load reads a JSONL script from path.
func Load(path string, delay time.Duration) (*Recognizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script %q: %w", path, err)
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("script %q: %w", path, err)
	}
	return New(lines, delay), nil
}

// Parse decodes one JSON object per non-blank line.
func Parse(r io.Reader) ([]Line, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []Line
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var line Line
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Start opens a stream that delivers the remaining lines.
func (r *Recognizer) Start(ctx context.Context) (recognizer.Stream, error) {
	r.mu.Lock()
	exhausted := r.pos >= len(r.lines)
	r.mu.Unlock()
	if exhausted {
		return nil, recognizer.ErrEndOfInput
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &stream{
		segments: make(chan align.Segment),
		cancel:   cancel,
	}
	go s.run(ctx, r)
	return s, nil
}

func (r *Recognizer) peek() (Line, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.lines) {
		return Line{}, false
	}
	return r.lines[r.pos], true
}

// advance marks the peeked line delivered.
func (r *Recognizer) advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos++
}

type stream struct {
	segments chan align.Segment
	cancel   context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *stream) run(ctx context.Context, r *Recognizer) {
	defer close(s.segments)
	defer s.cancel()

	for {
		if r.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.delay):
			}
		}

		line, ok := r.peek()
		if !ok {
			s.setErr(recognizer.ErrEndOfInput)
			return
		}
		if line.EndStream {
			r.advance()
			return
		}

		seg := align.Segment{ResultIndex: line.ResultIndex, Text: line.Text, Final: line.Final}
		select {
		case <-ctx.Done():
			return
		case s.segments <- seg:
			r.advance()
		}
	}
}

func (s *stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stream) Segments() <-chan align.Segment {
	return s.segments
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Stop() error {
	s.cancel()
	return nil
}
