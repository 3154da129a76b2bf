package shared

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Activity is one human-readable log entry describing a billing action.
type Activity struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	Action     string
	EntityType string
}

// ActivityLogger records audit entries. Recording is best effort: a failed
// insert is logged and swallowed so it can never abort the billing mutation
// that triggered it.
type ActivityLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewActivityLogger returns a new ActivityLogger. A nil pool yields a
// logger that only emits to slog, which is what service tests use.
func NewActivityLogger(pool *pgxpool.Pool, logger *slog.Logger) *ActivityLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityLogger{pool: pool, logger: logger}
}

// Log persists one activity entry. Errors are swallowed.
func (l *ActivityLogger) Log(ctx context.Context, ownerID uuid.UUID, action, entityType string, entityID uuid.UUID, description string) {
	if l == nil {
		return
	}
	if l.pool == nil {
		l.logger.Info("activity", "action", action, "entity", entityType, "entity_id", entityID, "description", description)
		return
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO activities (id, owner_id, action, entity_type, entity_id, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		uuid.New(), ownerID, action, entityType, entityID, description)
	if err != nil {
		l.logger.Error("record activity", "action", action, "entity", entityType, "error", err)
	}
}

// List returns the owner's activities, newest first, with optional filters.
func (l *ActivityLogger) List(ctx context.Context, ownerID uuid.UUID, filter ActivityFilter, page Pagination) ([]Activity, int, error) {
	if l == nil || l.pool == nil {
		return nil, 0, nil
	}

	where := `WHERE owner_id = $1`
	args := []any{ownerID}
	if filter.Action != "" {
		args = append(args, filter.Action)
		where += ` AND action = $2`
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		if filter.Action != "" {
			where += ` AND entity_type = $3`
		} else {
			where += ` AND entity_type = $2`
		}
	}

	var total int
	if err := l.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, owner_id, action, entity_type, entity_id, description, created_at FROM activities ` +
		where + ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(page.PerPage) + ` OFFSET ` + strconv.Itoa(page.Offset())
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Action, &a.EntityType, &a.EntityID, &a.Description, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}
