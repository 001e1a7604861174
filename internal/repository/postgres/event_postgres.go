package postgres

import (
	"context"
	"database/sql"
	"errors"

	"svckit/internal/model"
	"svckit/internal/repository"
)

// EventPostgres is a PostgreSQL implementation of repository.EventRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type EventPostgres struct {
	db *sql.DB
}

// NewEventPostgres creates a new EventPostgres repository.
func NewEventPostgres(db *sql.DB) *EventPostgres {
	return &EventPostgres{db: db}
}

var _ repository.EventRepository = (*EventPostgres)(nil)

// IsNoRowsError reports whether err means the queried row does not exist.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Create inserts a new event row and returns the stored record.
func (r *EventPostgres) Create(ctx context.Context, ev *model.Event) (*model.Event, error) {
	const q = `
		INSERT INTO events (id, type, source, payload, payload_ref, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, type, source, payload, payload_ref, occurred_at, created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		ev.ID,
		ev.Type,
		ev.Source,
		nullableBytes(ev.Payload),
		nullableString(ev.PayloadRef),
		ev.OccurredAt,
		ev.CreatedAt,
	)
	return scanEvent(row)
}

// FindByID fetches a single event by its ID.
func (r *EventPostgres) FindByID(ctx context.Context, id string) (*model.Event, error) {
	const q = `
		SELECT id, type, source, payload, payload_ref, occurred_at, created_at
		FROM events
		WHERE id = $1
	`
	return scanEvent(r.db.QueryRowContext(ctx, q, id))
}

// List returns events using LIMIT/OFFSET pagination and a total count.
func (r *EventPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Event], error) {
	const qCount = `SELECT COUNT(*) FROM events`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, type, source, payload, payload_ref, occurred_at, created_at
		FROM events
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Event]{Items: items, Total: total}, nil
}

// Delete removes an event by ID. Missing rows are not an error.
func (r *EventPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM events WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		ev         model.Event
		payload    []byte
		payloadRef sql.NullString
	)
	if err := row.Scan(
		&ev.ID,
		&ev.Type,
		&ev.Source,
		&payload,
		&payloadRef,
		&ev.OccurredAt,
		&ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	ev.Payload = payload
	ev.PayloadRef = payloadRef.String
	return &ev, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
