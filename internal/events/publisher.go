// Package events publishes confirmed-word and completion events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	KindConfirmed = "confirmed"
	KindComplete  = "complete"
)

// Confirmed is emitted once per confirmed reference token.
type Confirmed struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id"`
	Surah     int       `json:"surah"`
	Verse     int       `json:"verse"`
	Position  int       `json:"position"`
	Display   string    `json:"display"`
	Rule      string    `json:"rule"`
	Progress  float64   `json:"progress"`
	At        time.Time `json:"at"`
}

// Complete is emitted when the last token of a passage is confirmed.
type Complete struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id"`
	Surah     int       `json:"surah"`
	Tokens    int       `json:"tokens"`
	Restarts  int       `json:"restarts"`
	At        time.Time `json:"at"`
}

// Config holds Kafka publisher settings.
type Config struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
}

// Recorder counts publish attempts.
type Recorder interface {
	RecordPublish(kind string, err error)
}

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Publisher writes events keyed by session id. When disabled it only logs.
// Kafka writes are asynchronous so a slow broker never stalls matching;
// their outcome is reported through the writer's completion callback.
type Publisher struct {
	writer   messageWriter
	async    bool
	clientID string
	logger   *slog.Logger
	recorder Recorder
}

// New builds a publisher. Missing brokers or Enabled=false selects log-only mode.
func New(cfg Config, logger *slog.Logger, recorder Recorder) *Publisher {
	p := &Publisher{clientID: cfg.ClientID, logger: logger, recorder: recorder}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		p.log(slog.LevelDebug, "kafka disabled, events are logged only")
		return p
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.completed,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc, ClientID: cfg.ClientID},
	}
	p.async = true
	p.log(slog.LevelInfo, "kafka publisher initialized",
		"brokers", strings.Join(cfg.Brokers, ","),
		"topic", cfg.Topic,
	)
	return p
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// PublishConfirmed publishes one confirmed-token event.
func (p *Publisher) PublishConfirmed(ctx context.Context, event Confirmed) error {
	event.Kind = KindConfirmed
	return p.publish(ctx, KindConfirmed, event.SessionID, event)
}

// PublishComplete publishes the passage completion event.
func (p *Publisher) PublishComplete(ctx context.Context, event Complete) error {
	event.Kind = KindComplete
	return p.publish(ctx, KindComplete, event.SessionID, event)
}

func (p *Publisher) publish(ctx context.Context, kind, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	p.log(slog.LevelDebug, "publishing event", "kind", kind, "key", key, "payload", string(payload))
	if p.writer == nil {
		p.record(kind, nil)
		return nil
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "client_id", Value: []byte(p.clientID)},
		},
	})
	if err != nil {
		p.record(kind, err)
		p.log(slog.LevelError, "kafka write failed", "kind", kind, "key", key, "error", err)
		return fmt.Errorf("write %s event: %w", kind, err)
	}
	if !p.async {
		p.record(kind, nil)
	}
	return nil
}

// completed receives the outcome of asynchronous batches.
func (p *Publisher) completed(messages []kafka.Message, err error) {
	for _, msg := range messages {
		p.record(headerValue(msg, "kind"), err)
	}
	if err != nil {
		p.log(slog.LevelError, "kafka batch failed", "messages", len(messages), "error", err)
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Publisher) record(kind string, err error) {
	if p.recorder != nil {
		p.recorder.RecordPublish(kind, err)
	}
}

func (p *Publisher) log(level slog.Level, msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Log(context.Background(), level, msg, args...)
}

// Ping dials every broker once.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			return fmt.Errorf("dial broker %s: %w", broker, err)
		}
		_ = conn.Close()
	}
	return nil
}
