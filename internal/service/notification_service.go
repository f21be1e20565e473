package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// NotificationService posts lifecycle notices to the log channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	platform   platform.Platform
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, p platform.Platform, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		platform:   p,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketClaimed, n.handleTicketClaimed)
	n.dispatcher.Subscribe(events.EventTicketUnclaimed, n.handleTicketUnclaimed)
	n.dispatcher.Subscribe(events.EventTicketTransferred, n.handleTicketTransferred)
	n.dispatcher.Subscribe(events.EventTicketParticipantAdded, n.handleParticipantAdded)
}

func (n *NotificationService) handleTicketClaimed(ctx context.Context, event events.Event) error {
	return n.notify(ctx, event, "Ticket Claimed",
		fmt.Sprintf("%s claimed **%s**", event.ActorID.Mention(), event.ChannelName))
}

func (n *NotificationService) handleTicketUnclaimed(ctx context.Context, event events.Event) error {
	text := fmt.Sprintf("%s unclaimed **%s**", event.ActorID.Mention(), event.ChannelName)
	if payload, ok := event.Payload.(events.TicketUnclaimedPayload); ok && payload.Forced {
		text = fmt.Sprintf("%s force-unclaimed **%s** from %s", event.ActorID.Mention(), event.ChannelName, payload.PreviousClaimant.Mention())
	}
	return n.notify(ctx, event, "Ticket Unclaimed", text)
}

func (n *NotificationService) handleTicketTransferred(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketTransferredPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	from := "nobody"
	if payload.FromClaimant != domain.Unclaimed {
		from = payload.FromClaimant.Mention()
	}
	return n.notify(ctx, event, "Ticket Transferred",
		fmt.Sprintf("%s transferred **%s** from %s to %s", event.ActorID.Mention(), event.ChannelName, from, payload.ToClaimant.Mention()))
}

func (n *NotificationService) handleParticipantAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketParticipantAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return n.notify(ctx, event, "User Added",
		fmt.Sprintf("%s added %s to **%s**", event.ActorID.Mention(), payload.UserID.Mention(), event.ChannelName))
}

func (n *NotificationService) notify(ctx context.Context, event events.Event, title, text string) error {
	if n.cfg.LogChannelID == 0 || n.platform == nil {
		n.logger.Debug("notification skipped, no log channel",
			zap.String("event_type", string(event.Type)),
			zap.Stringer("channel_id", event.ChannelID))
		return nil
	}
	msg := platform.OutgoingMessage{
		Title: title,
		Fields: []domain.Field{
			{Label: "Ticket", Value: event.ChannelID.String()},
			{Label: "Details", Value: text},
		},
	}
	if err := n.platform.SendMessage(ctx, n.cfg.LogChannelID, msg); err != nil {
		return fmt.Errorf("notify %s: %w", event.Type, err)
	}
	return nil
}
