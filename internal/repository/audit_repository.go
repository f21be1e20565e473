package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
)

// DBTX is the subset of pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AuditRepository stores lifecycle events per ticket channel.
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts event. Replayed events are ignored.
func (r *AuditRepository) Record(ctx context.Context, event events.Event) error {
	const query = `
        INSERT INTO ticket_audit (event_id, event_type, channel_id, channel_name, actor_id, creator_id, claimant_id, payload, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (event_id) DO NOTHING`

	var payload []byte
	if event.Payload != nil {
		encoded, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payload = encoded
	}
	_, err := r.db.Exec(ctx, query,
		event.ID,
		string(event.Type),
		event.ChannelID.String(),
		event.ChannelName,
		event.ActorID.String(),
		event.State.Creator.String(),
		event.State.Claimant.String(),
		payload,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", event.ID, err)
	}
	return nil
}

// ListByChannel returns the channel's audit entries oldest first.
func (r *AuditRepository) ListByChannel(ctx context.Context, channelID domain.Snowflake) ([]domain.AuditEntry, error) {
	const query = `
        SELECT event_id, event_type, actor_id, creator_id, claimant_id, payload, occurred_at
        FROM ticket_audit WHERE channel_id=$1 ORDER BY occurred_at ASC`
	rows, err := r.db.Query(ctx, query, channelID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry                    domain.AuditEntry
			actor, creator, claimant string
			payload                  []byte
		)
		if err := rows.Scan(
			&entry.EventID,
			&entry.EventType,
			&actor,
			&creator,
			&claimant,
			&payload,
			&entry.OccurredAt,
		); err != nil {
			return nil, err
		}
		entry.ChannelID = channelID
		if err := entry.ActorID.UnmarshalText([]byte(actor)); err != nil {
			return nil, err
		}
		if err := entry.State.Creator.UnmarshalText([]byte(creator)); err != nil {
			return nil, err
		}
		if err := entry.State.Claimant.UnmarshalText([]byte(claimant)); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			entry.Payload = json.RawMessage(payload)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
