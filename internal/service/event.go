package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"svckit/internal/log"
	"svckit/internal/messaging"
	"svckit/internal/model"
	"svckit/internal/repository"
	"svckit/internal/storage"
)

var (
	ErrTypeRequired  = errors.New("event type is required")
	ErrIDRequired    = errors.New("id is required")
	ErrNotFound      = errors.New("event not found")
	ErrInlinePayload = errors.New("event payload is stored inline")
)

// EventListResult is the service-level DTO for paginated events.
type EventListResult struct {
	Items []model.Event `json:"data"`
	Total int           `json:"total"`
}

// IngestInput carries a single event submission.
type IngestInput struct {
	Type       string
	Source     string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// EventService defines the use cases for handling events.
type EventService interface {
	// Ingest validates and persists an event, offloading oversized payloads
	// to object storage (rolled back if the DB save fails), then fans the
	// stored event out on the in-process bus under its type as topic.
	Ingest(ctx context.Context, in IngestInput) (*model.Event, error)

	// List returns events using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*EventListResult, error)

	// Get returns a single event by its ID.
	Get(ctx context.Context, id string) (*model.Event, error)

	// PayloadURL returns a presigned download URL for an offloaded payload.
	PayloadURL(ctx context.Context, id string, expiry time.Duration) (string, error)

	// Delete removes an event and, for offloaded payloads, its stored object.
	Delete(ctx context.Context, id string) error
}

// eventService is a concrete implementation of EventService.
type eventService struct {
	store     storage.Store
	repo      repository.EventRepository
	bus       *messaging.Bus[model.Event]
	inlineMax int
	logger    zerolog.Logger
}

// NewEventService constructs a new EventService. Payloads larger than
// inlineMax bytes are stored as objects instead of inline rows.
func NewEventService(store storage.Store, repo repository.EventRepository, bus *messaging.Bus[model.Event], inlineMax int) EventService {
	return &eventService{
		store:     store,
		repo:      repo,
		bus:       bus,
		inlineMax: inlineMax,
		logger:    log.WithComponent("events"),
	}
}

func (s *eventService) Ingest(ctx context.Context, in IngestInput) (*model.Event, error) {
	if in.Type == "" {
		return nil, ErrTypeRequired
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ev := &model.Event{
		ID:         uuid.NewString(),
		Type:       in.Type,
		Source:     in.Source,
		Payload:    in.Payload,
		OccurredAt: occurredAt,
		CreatedAt:  time.Now().UTC(),
	}

	// Claim check: oversized payloads live in object storage, the row keeps
	// only the key.
	if s.inlineMax > 0 && len(in.Payload) > s.inlineMax {
		key := path.Join("events", ev.ID+".json")
		_, err := s.store.Put(ctx, key, bytes.NewReader(in.Payload), storage.PutOptions{
			Size:        int64(len(in.Payload)),
			ContentType: "application/json",
			Metadata:    map[string]string{"event-type": in.Type},
		})
		if err != nil {
			return nil, fmt.Errorf("offload payload: %w", err)
		}
		ev.Payload = nil
		ev.PayloadRef = key
	}

	stored, err := s.repo.Create(ctx, ev)
	if err != nil {
		if ev.PayloadRef != "" {
			// Rollback: remove the offloaded object.
			if delErr := s.store.Delete(ctx, ev.PayloadRef); delErr != nil {
				return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
			}
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	delivered, err := s.bus.Publish(ctx, stored.Type, *stored)
	l := log.WithContext(ctx, s.logger)
	if err != nil {
		// The event is durably stored; a closed bus only costs the fan-out.
		l.Warn().
			Str("event_id", stored.ID).
			Err(err).
			Msg("event stored but not announced")
	} else {
		l.Debug().
			Str("event_id", stored.ID).
			Str("event_type", stored.Type).
			Int("subscribers", delivered).
			Msg("event announced")
	}

	return stored, nil
}

// List returns paginated events without exposing repository types.
func (s *eventService) List(ctx context.Context, limit, offset int) (*EventListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &EventListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns an event by ID.
func (s *eventService) Get(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	ev, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

// PayloadURL resolves an offloaded payload to a presigned download URL.
func (s *eventService) PayloadURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if ev.Inline() {
		return "", ErrInlinePayload
	}
	return s.store.PresignGet(ctx, ev.PayloadRef, expiry)
}

// Delete removes the stored object first, then the row, so a failed object
// delete never leaves an unreachable payload behind.
func (s *eventService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	ev, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !ev.Inline() {
		if err := s.store.Delete(ctx, ev.PayloadRef); err != nil {
			return fmt.Errorf("delete payload object: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}
