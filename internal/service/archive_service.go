package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

var errNoLogChannel = errors.New("no log channel configured")

// ArchiveConfig configures where transcripts are delivered.
type ArchiveConfig struct {
	LogChannelID domain.Snowflake
}

// ArchiveService renders ticket transcripts and delivers them to the log channel.
type ArchiveService struct {
	platform platform.Platform
	cfg      ArchiveConfig
	logger   *zap.Logger
}

// NewArchiveService creates the service.
func NewArchiveService(p platform.Platform, cfg ArchiveConfig, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{platform: p, cfg: cfg, logger: logger}
}

// Transcript is a linearized channel history.
type Transcript struct {
	ChannelName string
	Lines       []string
	// Truncated is set when the history read failed part way; Err holds why.
	Truncated bool
	Err       error
}

// Render joins the lines in chronological order. A truncated transcript ends
// with an explicit marker.
func (t *Transcript) Render() string {
	text := strings.Join(t.Lines, "\n")
	if t.Truncated {
		marker := fmt.Sprintf("[transcript truncated after %d messages: %v]", len(t.Lines), t.Err)
		if text == "" {
			return marker
		}
		return text + "\n" + marker
	}
	return text
}

// FileName is the attachment name used on delivery.
func (t *Transcript) FileName() string {
	return t.ChannelName + ".txt"
}

// ArchiveResult reports what happened to a transcript.
type ArchiveResult struct {
	Transcript  *Transcript
	Delivered   bool
	DeliveryErr error
}

// FormatLine renders one history message as "[timestamp] author: content".
func FormatLine(msg platform.HistoryMessage) string {
	return fmt.Sprintf("[%s] %s: %s", msg.Timestamp.UTC().Format(time.RFC3339), msg.Author, msg.Content)
}

// Render streams the channel history oldest first. It never returns a
// partial transcript without flagging it.
func (s *ArchiveService) Render(ctx context.Context, channelID domain.Snowflake, channelName string) *Transcript {
	transcript := &Transcript{ChannelName: channelName}
	for msg, err := range s.platform.ReadHistory(ctx, channelID) {
		if err != nil {
			transcript.Truncated = true
			transcript.Err = err
			break
		}
		transcript.Lines = append(transcript.Lines, FormatLine(msg))
	}
	return transcript
}

// Archive renders the ticket's transcript and delivers it with a close
// summary. The returned error is set only when the history could not be read
// in full; delivery problems are reported in the result.
func (s *ArchiveService) Archive(ctx context.Context, ticket *domain.TicketHandle, closer domain.Snowflake) (*ArchiveResult, error) {
	transcript := s.Render(ctx, ticket.ChannelID, ticket.Name)
	result := &ArchiveResult{Transcript: transcript}
	if transcript.Truncated {
		return result, fmt.Errorf("read history of %s: %w", ticket.ChannelID, transcript.Err)
	}

	if s.cfg.LogChannelID == 0 {
		result.DeliveryErr = errNoLogChannel
		s.logger.Warn("transcript not delivered",
			zap.Stringer("channel_id", ticket.ChannelID),
			zap.Error(errNoLogChannel))
		return result, nil
	}

	msg := platform.OutgoingMessage{
		Content: fmt.Sprintf("Transcript for **%s**", ticket.Name),
		Title:   "Ticket Closed",
		Fields:  closeSummary(ticket.State, closer),
		Attachments: []platform.Attachment{{
			Name:        transcript.FileName(),
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(transcript.Render()),
		}},
	}
	if err := s.platform.SendMessage(ctx, s.cfg.LogChannelID, msg); err != nil {
		result.DeliveryErr = err
		s.logger.Warn("transcript delivery failed",
			zap.Stringer("channel_id", ticket.ChannelID),
			zap.Stringer("log_channel_id", s.cfg.LogChannelID),
			zap.Error(err))
		return result, nil
	}
	result.Delivered = true
	return result, nil
}

func closeSummary(state domain.TicketState, closer domain.Snowflake) []domain.Field {
	creator := "Unknown"
	if state.CreatorKnown() {
		creator = state.Creator.Mention()
	}
	claimant := "Unclaimed"
	if state.IsClaimed() {
		claimant = state.Claimant.Mention()
	}
	return []domain.Field{
		{Label: "Creator", Value: creator},
		{Label: "Claimed By", Value: claimant},
		{Label: "Closed By", Value: closer.Mention()},
	}
}
