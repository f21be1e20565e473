package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// ProvisionerConfig holds where and for whom ticket channels are created.
type ProvisionerConfig struct {
	TicketContainerID domain.Snowflake
	// EveryoneRoleID is the guild's default role, equal to the guild ID on Discord.
	EveryoneRoleID domain.Snowflake
	StaffRoles     []domain.Snowflake
	// PageRoles maps a category to the role pinged when a ticket opens.
	PageRoles map[domain.TicketCategory]domain.Snowflake
}

// ProvisionerService creates ticket channels from submitted request forms.
type ProvisionerService struct {
	platform   platform.Platform
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        ProvisionerConfig
	now        func() time.Time
}

// ProvisionerDependencies bundles collaborators.
type ProvisionerDependencies struct {
	Platform   platform.Platform
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     ProvisionerConfig
}

// NewProvisionerService creates the service.
func NewProvisionerService(deps ProvisionerDependencies) *ProvisionerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisionerService{
		platform:   deps.Platform,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        deps.Config,
		now:        time.Now,
	}
}

// CreateTicket opens a private channel for req, posts its summary with the
// lifecycle controls and pages the category's staff role.
func (s *ProvisionerService) CreateTicket(ctx context.Context, req domain.TicketRequest) (ticket *domain.TicketHandle, err error) {
	defer func() {
		outcome := "accepted"
		if err != nil {
			outcome = "failed"
		}
		s.metrics.RecordTransition("create", outcome)
	}()

	if err := s.validate(req); err != nil {
		return nil, err
	}

	state := domain.TicketState{Creator: req.Requester.ID, Claimant: domain.Unclaimed}
	spec := platform.ChannelSpec{
		ParentID:   s.cfg.TicketContainerID,
		Name:       domain.ChannelName(req.Category, req.Requester.Name, req.Requester.ID),
		Metadata:   domain.EncodeMetadata(state),
		Overwrites: s.overwrites(req.Requester.ID),
	}
	info, err := s.platform.CreateChannel(ctx, spec)
	if err != nil {
		return nil, apperrors.NewPlatformFailure("create ticket", err, false, false)
	}
	ticket = &domain.TicketHandle{
		ChannelID: info.ID,
		Name:      info.Name,
		State:     state,
		Raw:       info.Metadata,
	}

	summary := platform.OutgoingMessage{
		Content:  fmt.Sprintf("Welcome %s, staff will be with you shortly.", req.Requester.ID.Mention()),
		Title:    req.Category.SummaryTitle(),
		Fields:   req.Fields,
		Controls: []platform.ControlKind{platform.ControlClaim, platform.ControlUnclaim, platform.ControlClose},
	}
	if err := s.platform.SendMessage(ctx, ticket.ChannelID, summary); err != nil {
		rolledBack := s.discard(ctx, ticket.ChannelID)
		s.logger.Warn("ticket summary failed",
			zap.Stringer("channel_id", ticket.ChannelID),
			zap.Stringer("actor_id", req.Requester.ID),
			zap.Bool("rolled_back", rolledBack),
			zap.Error(err))
		return nil, apperrors.NewPlatformFailure("create ticket", err, true, rolledBack)
	}

	s.page(ctx, ticket, req.Category)

	s.logger.Info(string(events.EventTicketCreated),
		zap.Stringer("channel_id", ticket.ChannelID),
		zap.Stringer("actor_id", req.Requester.ID),
		zap.String("category", string(req.Category)))
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:          uuid.NewString(),
			Type:        events.EventTicketCreated,
			ChannelID:   ticket.ChannelID,
			ChannelName: ticket.Name,
			ActorID:     req.Requester.ID,
			State:       ticket.State,
			Timestamp:   s.now(),
			Payload:     events.TicketCreatedPayload{Category: req.Category, Fields: req.Fields},
		})
	}
	return ticket, nil
}

func (s *ProvisionerService) validate(req domain.TicketRequest) error {
	if !req.Category.Valid() {
		return apperrors.NewValidationError("unknown ticket category", map[string]any{"category": string(req.Category)})
	}
	if req.Requester.ID == 0 {
		return apperrors.NewValidationError("requester is required", nil)
	}
	form, _ := domain.FormFor(req.Category)
	answered := make(map[string]bool, len(req.Fields))
	for _, field := range req.Fields {
		answered[field.Label] = field.Value != ""
	}
	var missing []string
	for _, q := range form.Questions {
		if q.Required && !answered[q.Label] {
			missing = append(missing, q.Label)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	return nil
}

func (s *ProvisionerService) overwrites(requester domain.Snowflake) map[platform.Principal]platform.Overwrite {
	open := platform.Overwrite{View: platform.Allow, Send: platform.Allow}
	overwrites := map[platform.Principal]platform.Overwrite{
		platform.Role(s.cfg.EveryoneRoleID): {View: platform.Deny},
		platform.Member(requester):          open,
	}
	for _, role := range s.cfg.StaffRoles {
		overwrites[platform.Role(role)] = open
	}
	return overwrites
}

// discard deletes a channel whose setup failed part way.
func (s *ProvisionerService) discard(ctx context.Context, channelID domain.Snowflake) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := s.platform.DeleteChannel(ctx, channelID); err != nil {
		s.logger.Error("orphaned ticket channel",
			zap.Stringer("channel_id", channelID),
			zap.Error(err))
		return false
	}
	return true
}

func (s *ProvisionerService) page(ctx context.Context, ticket *domain.TicketHandle, category domain.TicketCategory) {
	role, ok := s.cfg.PageRoles[category]
	if !ok || role == 0 {
		return
	}
	msg := platform.OutgoingMessage{Content: fmt.Sprintf("%s new %s ticket", role.RoleMention(), category)}
	if err := s.platform.SendMessage(ctx, ticket.ChannelID, msg); err != nil {
		s.logger.Warn("staff page failed",
			zap.Stringer("channel_id", ticket.ChannelID),
			zap.Stringer("role_id", role),
			zap.Error(err))
	}
}
