package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketClaimed          EventType = "ticket_claimed"
	EventTicketUnclaimed        EventType = "ticket_unclaimed"
	EventTicketTransferred      EventType = "ticket_transferred"
	EventTicketParticipantAdded EventType = "ticket_participant_added"
	EventTicketClosed           EventType = "ticket_closed"
)

// AllEventTypes lists every lifecycle event type.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketClaimed,
	EventTicketUnclaimed,
	EventTicketTransferred,
	EventTicketParticipantAdded,
	EventTicketClosed,
}

// Event represents a committed lifecycle transition.
type Event struct {
	ID          string             `json:"id"`
	Type        EventType          `json:"type"`
	ChannelID   domain.Snowflake   `json:"channel_id"`
	ChannelName string             `json:"channel_name"`
	ActorID     domain.Snowflake   `json:"actor_id"`
	State       domain.TicketState `json:"state"`
	Timestamp   time.Time          `json:"timestamp"`
	Payload     any                `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category domain.TicketCategory `json:"category"`
	Fields   []domain.Field        `json:"fields"`
}

// TicketTransferredPayload payload.
type TicketTransferredPayload struct {
	FromClaimant domain.Snowflake `json:"from_claimant"`
	ToClaimant   domain.Snowflake `json:"to_claimant"`
}

// TicketUnclaimedPayload payload.
type TicketUnclaimedPayload struct {
	PreviousClaimant domain.Snowflake `json:"previous_claimant"`
	Forced           bool             `json:"forced"`
}

// TicketParticipantAddedPayload payload.
type TicketParticipantAddedPayload struct {
	UserID domain.Snowflake `json:"user_id"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TranscriptLines  int  `json:"transcript_lines"`
	ArchiveDelivered bool `json:"archive_delivered"`
}
