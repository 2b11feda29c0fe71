package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardledger/internal/logger"
	"cardledger/internal/metrics"
)

const (
	eventsKey   = "events"
	eventsChan  = "events:live"
	recentLimit = 100
)

// Event is one station-desk notification: a touch outcome, an import
// warning, a read error. The UI subscribes to the live channel and
// backfills from the recent list on reconnect.
type Event struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	CardIDm string    `json:"card_idm,omitempty"`
	Staff   string    `json:"staff,omitempty"`
	Created time.Time `json:"created"`
}

const (
	KindLent              = "lent"
	KindReturned          = "returned"
	KindReverted          = "reverted"
	KindUnknownCard       = "unknown_card"
	KindReadError         = "read_error"
	KindIncompleteHistory = "incomplete_history"
	KindInconsistency     = "inconsistency"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Service struct {
	redis *redis.Client
}

func New(redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
	}
}

// NewWithClient exists for tests that inject a mock client.
func NewWithClient(client *redis.Client) *Service {
	return &Service{redis: client}
}

// Publish pushes the event onto the capped recent list and fans it out
// to live subscribers. The list is trimmed so reconnecting clients only
// backfill what a desk operator could plausibly have missed.
func (s *Service) Publish(ctx context.Context, event Event) error {
	if event.Created.IsZero() {
		event.Created = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("Failed to marshal event: %v", err)
		return err
	}

	length, err := s.redis.LPush(ctx, eventsKey, data).Result()
	if err != nil {
		logger.Errorf("Failed to queue event %s: %v", event.Kind, err)
		return err
	}
	if err := s.redis.LTrim(ctx, eventsKey, 0, recentLimit-1).Err(); err != nil {
		logger.Errorf("Failed to trim event list: %v", err)
	}
	if length > recentLimit {
		length = recentLimit
	}
	metrics.SetNotifyQueueLength(length)
	if err := s.redis.Publish(ctx, eventsChan, data).Err(); err != nil {
		logger.Errorf("Failed to publish event %s: %v", event.Kind, err)
	}

	logger.Infof("Event published: %s %s", event.Kind, event.Message)
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}

	raw, err := s.redis.LRange(ctx, eventsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			logger.Errorf("Bad event data: %v", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, eventsKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

func (s *Service) PublishLent(ctx context.Context, idm, cardNumber, staffName string) error {
	return s.Publish(ctx, Event{
		Kind:    KindLent,
		Message: fmt.Sprintf("Card %s lent to %s", cardNumber, staffName),
		CardIDm: idm,
		Staff:   staffName,
	})
}

func (s *Service) PublishReturned(ctx context.Context, idm, cardNumber, staffName string, imported int) error {
	return s.Publish(ctx, Event{
		Kind:    KindReturned,
		Message: fmt.Sprintf("Card %s returned by %s (%d transactions imported)", cardNumber, staffName, imported),
		CardIDm: idm,
		Staff:   staffName,
	})
}

func (s *Service) PublishReverted(ctx context.Context, idm, cardNumber, staffName, direction string) error {
	return s.Publish(ctx, Event{
		Kind:    KindReverted,
		Message: fmt.Sprintf("Reverted %s of card %s for %s", direction, cardNumber, staffName),
		CardIDm: idm,
		Staff:   staffName,
	})
}

func (s *Service) PublishUnknownCard(ctx context.Context, idm string) error {
	return s.Publish(ctx, Event{
		Kind:    KindUnknownCard,
		Message: fmt.Sprintf("Unregistered card touched: %s", idm),
		CardIDm: idm,
	})
}

func (s *Service) PublishReadError(ctx context.Context, idm string, readErr error) error {
	return s.Publish(ctx, Event{
		Kind:    KindReadError,
		Message: fmt.Sprintf("Card read failed: %v", readErr),
		CardIDm: idm,
	})
}

func (s *Service) PublishIncompleteHistory(ctx context.Context, idm, cardNumber string) error {
	return s.Publish(ctx, Event{
		Kind:    KindIncompleteHistory,
		Message: fmt.Sprintf("Card %s onboard log may be truncated; older entries need manual backfill", cardNumber),
		CardIDm: idm,
	})
}
