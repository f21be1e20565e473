package dto

import (
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// CreateTicketRequest payload. Answers are keyed by form question key.
type CreateTicketRequest struct {
	Category      domain.TicketCategory `json:"category"`
	RequesterName string                `json:"requester_name"`
	Answers       map[string]string     `json:"answers"`
}

// TransferRequest payload.
type TransferRequest struct {
	TargetUserID domain.Snowflake `json:"target_user_id"`
}

// ParticipantRequest payload.
type ParticipantRequest struct {
	UserID domain.Snowflake `json:"user_id"`
}

// TicketResponse describes a live ticket.
type TicketResponse struct {
	ChannelID domain.Snowflake  `json:"channel_id"`
	Name      string            `json:"name"`
	Creator   *domain.Snowflake `json:"creator_id"`
	Claimant  *domain.Snowflake `json:"claimant_id"`
	Claimed   bool              `json:"claimed"`
}

// CloseResponse reports a closed ticket.
type CloseResponse struct {
	ChannelID        domain.Snowflake `json:"channel_id"`
	TranscriptLines  int              `json:"transcript_lines"`
	ArchiveDelivered bool             `json:"archive_delivered"`
	ArchiveError     string           `json:"archive_error,omitempty"`
}

// NewTicketResponse maps a handle; unknown creator and unclaimed render as null.
func NewTicketResponse(ticket *domain.TicketHandle) TicketResponse {
	resp := TicketResponse{
		ChannelID: ticket.ChannelID,
		Name:      ticket.Name,
		Claimed:   ticket.State.IsClaimed(),
	}
	if ticket.State.CreatorKnown() {
		creator := ticket.State.Creator
		resp.Creator = &creator
	}
	if ticket.State.IsClaimed() {
		claimant := ticket.State.Claimant
		resp.Claimant = &claimant
	}
	return resp
}

// NewCloseResponse maps a close result.
func NewCloseResponse(result *service.CloseResult) CloseResponse {
	resp := CloseResponse{
		ChannelID:        result.Ticket.ChannelID,
		ArchiveDelivered: result.ArchiveDelivered,
	}
	if result.Transcript != nil {
		resp.TranscriptLines = len(result.Transcript.Lines)
	}
	if result.ArchiveErr != nil {
		resp.ArchiveError = result.ArchiveErr.Error()
	}
	return resp
}
