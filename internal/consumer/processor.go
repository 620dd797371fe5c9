// Package consumer ingests listen events published by the playback poller.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/eric-nguyen545/runningTunes/internal/domain"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a listen event record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Listen    domain.Listen
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *log.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
// Handler errors skip the commit so the message is redelivered; the listen
// store's played_at dedup makes that redelivery harmless.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.Printf("handler error (topic=%s, offset=%d): %v", event.Topic, event.Offset, handleErr)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
		} else {
			recordProcessed(event)
		}
	}
}

// listenPayload is the wire shape the playback poller publishes.
type listenPayload struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	PlayedAt string `json:"played_at"`
}

func decodeMessage(msg kafka.Message) (Message, error) {
	var payload listenPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return Message{}, err
	}

	if strings.TrimSpace(payload.Name) == "" || strings.TrimSpace(payload.Artist) == "" {
		return Message{}, errors.New("missing name or artist")
	}

	playedAt, err := time.Parse(time.RFC3339, payload.PlayedAt)
	if err != nil {
		return Message{}, fmt.Errorf("bad played_at %q: %v", payload.PlayedAt, err)
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Listen: domain.Listen{
			TrackName: payload.Name,
			Artist:    payload.Artist,
			PlayedAt:  playedAt.UTC(),
		},
	}, nil
}
