// Package google streams microphone audio to Google Cloud Speech-to-Text.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/rbright/hifz/internal/align"
	"github.com/rbright/hifz/internal/audio"
	"github.com/rbright/hifz/internal/recognizer"
)

// Config controls recognition and capture.
type Config struct {
	LanguageCode    string
	Model           string
	CredentialsFile string
	AudioInput      string
	AudioFallback   string
	// DumpDir receives one protojson response log per stream when set.
	DumpDir string
}

// source is the capture surface the send loop reads from.
type source interface {
	Chunks() <-chan []byte
	Stop() error
	Device() audio.Device
}

type (
	openFunc    func(context.Context) (speechpb.Speech_StreamingRecognizeClient, error)
	captureFunc func(context.Context) (source, error)
)

// Recognizer opens one Speech-to-Text streaming call per Start.
type Recognizer struct {
	cfg    Config
	logger *slog.Logger

	open    openFunc
	capture captureFunc
	close   func() error
}

// New creates the Speech-to-Text client. It fails when no credentials can be found.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Recognizer, error) {
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	r := newRecognizer(cfg, logger)
	r.open = func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	}
	r.close = client.Close
	return r, nil
}

// CheckCredentials reports whether Speech-to-Text credentials can be found,
// either in file or through application default credentials.
func CheckCredentials(ctx context.Context, file string) error {
	if path := strings.TrimSpace(file); path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("credentials file: %w", err)
		}
		return nil
	}
	if _, err := google.FindDefaultCredentials(ctx, speech.DefaultAuthScopes()...); err != nil {
		return fmt.Errorf("application default credentials: %w", err)
	}
	return nil
}

func newRecognizer(cfg Config, logger *slog.Logger) *Recognizer {
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "ar-SA"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Recognizer{cfg: cfg, logger: logger.With("component", "recognizer.google")}
	r.capture = r.startCapture
	return r
}

// Close releases the Speech-to-Text client.
func (r *Recognizer) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Start opens a streaming call, sends the recognition config, then starts capture.
func (r *Recognizer) Start(ctx context.Context) (recognizer.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	call, err := r.open(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open streaming recognize: %w", mapError(err))
	}
	if err := call.Send(r.configRequest()); err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", mapError(err))
	}

	src, err := r.capture(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	r.logger.Info("recognition stream started", "device", src.Device().String(), "language", r.cfg.LanguageCode)

	s := &stream{
		segments: make(chan align.Segment, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	dump := r.openDump()

	g, gctx := errgroup.WithContext(streamCtx)
	g.Go(func() error {
		err := sendLoop(call, src)
		if err != nil {
			cancel()
		}
		return err
	})
	g.Go(func() error {
		defer func() { _ = src.Stop() }()
		return s.recvLoop(gctx, streamCtx, call, dump)
	})

	go func() {
		err := g.Wait()
		if dump != nil {
			_ = dump.Close()
		}
		s.finish(err)
		r.logger.Info("recognition stream ended", "error", err)
	}()

	return s, nil
}

func (r *Recognizer) configRequest() *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:          speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:   audio.SampleRate,
					AudioChannelCount: 1,
					LanguageCode:      r.cfg.LanguageCode,
					Model:             strings.TrimSpace(r.cfg.Model),
				},
				InterimResults: true,
			},
		},
	}
}

func (r *Recognizer) startCapture(ctx context.Context) (source, error) {
	selection, err := audio.SelectDevice(ctx, r.cfg.AudioInput, r.cfg.AudioFallback)
	if err != nil {
		if errors.Is(err, audio.ErrMuted) {
			return nil, fmt.Errorf("%w: %v", recognizer.ErrPermissionDenied, err)
		}
		return nil, err
	}
	if selection.Warning != "" {
		r.logger.Warn(selection.Warning)
	}
	capture, err := audio.StartCapture(ctx, selection.Device)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// openDump creates a timestamped response log, or returns nil when dumping is off.
func (r *Recognizer) openDump() io.WriteCloser {
	if strings.TrimSpace(r.cfg.DumpDir) == "" {
		return nil
	}
	if err := os.MkdirAll(r.cfg.DumpDir, 0o700); err != nil {
		r.logger.Warn("unable to create dump dir", "error", err)
		return nil
	}
	name := fmt.Sprintf("grpc-%s.jsonl", time.Now().Format("20060102-150405.000"))
	f, err := os.OpenFile(filepath.Join(r.cfg.DumpDir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		r.logger.Warn("unable to open dump file", "error", err)
		return nil
	}
	return f
}

// sendLoop forwards capture chunks until capture stops, then half-closes the call.
func sendLoop(call speechpb.Speech_StreamingRecognizeClient, src source) error {
	for chunk := range src.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		err := call.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
		})
		if errors.Is(err, io.EOF) {
			// The server ended the call; Recv reports why.
			return nil
		}
		if err != nil {
			_ = src.Stop()
			return fmt.Errorf("send audio: %w", mapError(err))
		}
	}
	_ = call.CloseSend()
	return nil
}

type stream struct {
	segments chan align.Segment
	cancel   context.CancelFunc
	done     chan struct{}

	mu  sync.Mutex
	err error
}

// recvLoop maps responses to segments. The ResultIndex of a segment is the
// number of final results already delivered on this call.
func (s *stream) recvLoop(
	ctx context.Context,
	streamCtx context.Context,
	call speechpb.Speech_StreamingRecognizeClient,
	dump io.Writer,
) error {
	finals := 0
	for {
		resp, err := call.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if streamCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", mapError(err))
		}
		if dump != nil {
			if line, merr := protojson.Marshal(resp); merr == nil {
				_, _ = dump.Write(append(line, '\n'))
			}
		}
		if resp.GetError() != nil {
			return fmt.Errorf("recognition error: %w", mapError(status.FromProto(resp.GetError()).Err()))
		}

		seg, ok := segmentFromResponse(resp, finals)
		if !ok {
			continue
		}
		if seg.Final {
			finals++
		}
		select {
		case <-ctx.Done():
			return nil
		case s.segments <- seg:
		}
	}
}

func segmentFromResponse(resp *speechpb.StreamingRecognizeResponse, index int) (align.Segment, bool) {
	results := resp.GetResults()
	if len(results) == 0 {
		return align.Segment{}, false
	}
	parts := make([]string, 0, len(results))
	for _, result := range results {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return align.Segment{
		ResultIndex: index,
		Text:        strings.Join(parts, " "),
		Final:       results[0].GetIsFinal(),
	}, true
}

// mapError classifies access failures as ErrPermissionDenied.
func mapError(err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", recognizer.ErrPermissionDenied, err)
	default:
		return err
	}
}

func (s *stream) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.segments)
	close(s.done)
}

func (s *stream) Segments() <-chan align.Segment {
	return s.segments
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop cancels the call and waits briefly for both loops to exit.
func (s *stream) Stop() error {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}
