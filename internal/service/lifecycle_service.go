package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/policy"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const rollbackTimeout = 10 * time.Second

// LifecycleConfig holds static state machine settings.
type LifecycleConfig struct {
	TicketContainerID domain.Snowflake
	// CloseDelay is announced in the channel and waited out before deletion.
	CloseDelay time.Duration
}

// LifecycleService moves tickets between unclaimed, claimed and closed.
//
// The channel metadata is the system of record and the platform offers no
// compare-and-swap, so every transition runs read, guard, re-read, permission
// edits, metadata write. The re-read narrows but does not close the race: two
// staff members claiming within the window between re-read and write can both
// pass, and the later metadata write wins while their permission edits
// interleave.
type LifecycleService struct {
	platform   platform.Platform
	policy     *policy.Policy
	archiver   *ArchiveService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        LifecycleConfig
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
}

// LifecycleDependencies bundles collaborators.
type LifecycleDependencies struct {
	Platform   platform.Platform
	Policy     *policy.Policy
	Archiver   *ArchiveService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     LifecycleConfig
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		platform:   deps.Platform,
		policy:     deps.Policy,
		archiver:   deps.Archiver,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        deps.Config,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// CloseResult reports the outcome of a close. Archive delivery is reported
// separately from deletion.
type CloseResult struct {
	Ticket           *domain.TicketHandle
	Transcript       *Transcript
	ArchiveDelivered bool
	ArchiveErr       error
}

// Ticket loads the ticket living in channelID.
func (s *LifecycleService) Ticket(ctx context.Context, channelID domain.Snowflake) (*domain.TicketHandle, error) {
	ticket, _, err := s.load(ctx, channelID)
	return ticket, err
}

// Claim assigns the ticket to actorID and revokes send access from the rest of staff.
func (s *LifecycleService) Claim(ctx context.Context, actorID, channelID domain.Snowflake) (ticket *domain.TicketHandle, err error) {
	defer func() { s.record("claim", err) }()

	ticket, info, err := s.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	actor, _, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanClaim(actor, ticket.State) {
		if ticket.State.IsClaimed() {
			return nil, apperrors.NewDenied(fmt.Sprintf("ticket already claimed by %s", ticket.State.Claimant.Mention()))
		}
		return nil, apperrors.NewDenied("only staff can claim tickets")
	}

	next := domain.TicketState{Creator: ticket.State.Creator, Claimant: actorID}
	var edits []overwriteEdit
	for _, role := range s.policy.StaffRoles() {
		edits = appendSendEdit(edits, info, platform.Role(role), platform.Deny)
	}
	edits = appendSendEdit(edits, info, platform.Member(actorID), platform.Allow)

	if err := s.commit(ctx, "claim", ticket, next, edits); err != nil {
		return nil, err
	}
	s.announce(ctx, ticket.ChannelID, fmt.Sprintf("🟢 %s has claimed this ticket.", actorID.Mention()))
	s.publish(ctx, events.EventTicketClaimed, ticket, actorID, nil)
	return ticket, nil
}

// Unclaim releases the ticket and restores send access for staff.
func (s *LifecycleService) Unclaim(ctx context.Context, actorID, channelID domain.Snowflake) (ticket *domain.TicketHandle, err error) {
	defer func() { s.record("unclaim", err) }()

	ticket, info, err := s.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	actor, _, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanUnclaim(actor, ticket.State) {
		if !ticket.State.IsClaimed() {
			return nil, apperrors.NewDenied("ticket is not claimed")
		}
		return nil, apperrors.NewDenied("only the claimant can unclaim this ticket")
	}

	previous := ticket.State.Claimant
	next := domain.TicketState{Creator: ticket.State.Creator, Claimant: domain.Unclaimed}
	var edits []overwriteEdit
	for _, role := range s.policy.StaffRoles() {
		edits = appendSendEdit(edits, info, platform.Role(role), platform.Allow)
	}
	if previous != ticket.State.Creator {
		edits = appendSendEdit(edits, info, platform.Member(previous), platform.Inherit)
	}

	if err := s.commit(ctx, "unclaim", ticket, next, edits); err != nil {
		return nil, err
	}
	s.announce(ctx, ticket.ChannelID, "🔓 Ticket unclaimed, staff can now claim.")
	s.publish(ctx, events.EventTicketUnclaimed, ticket, actorID, events.TicketUnclaimedPayload{
		PreviousClaimant: previous,
		Forced:           actorID != previous,
	})
	return ticket, nil
}

// Transfer hands the ticket to another staff member.
func (s *LifecycleService) Transfer(ctx context.Context, actorID, targetID, channelID domain.Snowflake) (ticket *domain.TicketHandle, err error) {
	defer func() { s.record("transfer", err) }()

	ticket, info, err := s.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	actor, _, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanHandOff(actor, ticket.State) {
		return nil, apperrors.NewDenied("only the claimant can transfer this ticket")
	}
	details := map[string]any{"target_user_id": targetID.String()}
	targetIsStaff, err := platform.HasRole(ctx, s.platform, targetID, s.policy.StaffRoles()...)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, apperrors.NewInvalidTarget("target user not found", details)
	}
	if err != nil {
		return nil, apperrors.NewPlatformFailure("resolve roles", err, false, false)
	}
	if !s.policy.CanTransfer(actor, targetIsStaff, ticket.State) {
		return nil, apperrors.NewInvalidTarget("target user is not staff", details)
	}
	if targetID == ticket.State.Claimant {
		return nil, apperrors.NewInvalidTarget("target user already holds this ticket", details)
	}

	previous := ticket.State.Claimant
	next := domain.TicketState{Creator: ticket.State.Creator, Claimant: targetID}
	var edits []overwriteEdit
	if !ticket.State.IsClaimed() {
		for _, role := range s.policy.StaffRoles() {
			edits = appendSendEdit(edits, info, platform.Role(role), platform.Deny)
		}
	}
	edits = appendSendEdit(edits, info, platform.Member(targetID), platform.Allow)
	if ticket.State.IsClaimed() && previous != ticket.State.Creator {
		edits = appendSendEdit(edits, info, platform.Member(previous), platform.Inherit)
	}

	if err := s.commit(ctx, "transfer", ticket, next, edits); err != nil {
		return nil, err
	}
	s.announce(ctx, ticket.ChannelID, fmt.Sprintf("🔁 Ticket transferred to %s.", targetID.Mention()))
	s.publish(ctx, events.EventTicketTransferred, ticket, actorID, events.TicketTransferredPayload{
		FromClaimant: previous,
		ToClaimant:   targetID,
	})
	return ticket, nil
}

// AddParticipant lets another user view and write in the ticket.
func (s *LifecycleService) AddParticipant(ctx context.Context, actorID, userID, channelID domain.Snowflake) (ticket *domain.TicketHandle, err error) {
	defer func() { s.record("add_participant", err) }()

	ticket, info, err := s.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	actor, _, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAddParticipant(actor, ticket.State) {
		return nil, apperrors.NewDenied("only the claimant can add users to this ticket")
	}
	_, isMember, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	details := map[string]any{"user_id": userID.String()}
	if !isMember {
		return nil, apperrors.NewInvalidTarget("user not found", details)
	}
	principal := platform.Member(userID)
	want := platform.Overwrite{View: platform.Allow, Send: platform.Allow}
	prev := info.Overwrites[principal]
	if prev == want {
		return nil, apperrors.NewInvalidTarget("user already has access to this ticket", details)
	}

	edits := []overwriteEdit{{principal: principal, prev: prev, next: want}}
	if err := s.commit(ctx, "add participant", ticket, ticket.State, edits); err != nil {
		return nil, err
	}
	s.announce(ctx, ticket.ChannelID, fmt.Sprintf("➕ Added %s to the ticket.", userID.Mention()))
	s.publish(ctx, events.EventTicketParticipantAdded, ticket, actorID, events.TicketParticipantAddedPayload{UserID: userID})
	return ticket, nil
}

// Close archives the ticket's transcript and deletes its channel.
func (s *LifecycleService) Close(ctx context.Context, actorID, channelID domain.Snowflake) (result *CloseResult, err error) {
	defer func() { s.record("close", err) }()

	ticket, _, err := s.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	actor, _, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanClose(actor, ticket.State) {
		return nil, apperrors.NewDenied("only the creator or the claimant can close this ticket")
	}

	if delay := s.cfg.CloseDelay; delay > 0 {
		s.announce(ctx, ticket.ChannelID, fmt.Sprintf("🔒 Closing ticket in %d seconds...", int(delay.Seconds())))
		if err := s.sleep(ctx, delay); err != nil {
			return nil, apperrors.NewPlatformFailure("close", err, false, false)
		}
	}

	archived, err := s.archiver.Archive(ctx, ticket, actorID)
	if err != nil {
		s.logger.Warn("close aborted, transcript incomplete",
			zap.Stringer("channel_id", ticket.ChannelID),
			zap.Error(err))
		return nil, apperrors.NewPlatformFailure("close", err, false, false)
	}
	result = &CloseResult{
		Ticket:           ticket,
		Transcript:       archived.Transcript,
		ArchiveDelivered: archived.Delivered,
		ArchiveErr:       archived.DeliveryErr,
	}

	if err := s.platform.DeleteChannel(ctx, ticket.ChannelID); err != nil {
		s.logger.Error("ticket channel deletion failed",
			zap.Stringer("channel_id", ticket.ChannelID),
			zap.Bool("archive_delivered", result.ArchiveDelivered),
			zap.Error(err))
		return result, apperrors.NewPlatformFailure("close", err, false, false)
	}

	s.publish(ctx, events.EventTicketClosed, ticket, actorID, events.TicketClosedPayload{
		TranscriptLines:  len(archived.Transcript.Lines),
		ArchiveDelivered: archived.Delivered,
	})
	return result, nil
}

// load reads the channel and decodes its ticket state. Channels outside the
// ticket container are not tickets; inside it, unreadable metadata decodes to
// an unknown creator and an unclaimed ticket.
func (s *LifecycleService) load(ctx context.Context, channelID domain.Snowflake) (*domain.TicketHandle, *platform.ChannelInfo, error) {
	info, err := s.platform.Channel(ctx, channelID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil, nil, apperrors.NewNotATicket(channelID.String())
		}
		return nil, nil, apperrors.NewPlatformFailure("load ticket", err, false, false)
	}
	if info.ParentID != s.cfg.TicketContainerID {
		return nil, nil, apperrors.NewNotATicket(channelID.String())
	}
	return &domain.TicketHandle{
		ChannelID: info.ID,
		Name:      info.Name,
		State:     domain.DecodeMetadata(info.Metadata),
		Raw:       info.Metadata,
	}, info, nil
}

// actor resolves userID's current roles. A user who is not a guild member
// resolves with no roles and isMember false.
func (s *LifecycleService) actor(ctx context.Context, userID domain.Snowflake) (policy.Actor, bool, error) {
	roles, err := s.platform.MemberRoles(ctx, userID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return policy.Actor{ID: userID}, false, nil
		}
		return policy.Actor{}, false, apperrors.NewPlatformFailure("resolve roles", err, false, false)
	}
	return policy.Actor{ID: userID, Roles: roles}, true, nil
}

type overwriteEdit struct {
	principal platform.Principal
	prev      platform.Overwrite
	next      platform.Overwrite
}

// appendSendEdit queues a change of principal's send bit, skipping no-ops.
func appendSendEdit(edits []overwriteEdit, info *platform.ChannelInfo, principal platform.Principal, send platform.Permission) []overwriteEdit {
	prev := info.Overwrites[principal]
	next := prev
	next.Send = send
	if next == prev {
		return edits
	}
	return append(edits, overwriteEdit{principal: principal, prev: prev, next: next})
}

// commit re-reads the metadata, applies edits in order and then writes next.
// Any failure rolls applied edits back so the ticket keeps its prior state.
func (s *LifecycleService) commit(ctx context.Context, op string, ticket *domain.TicketHandle, next domain.TicketState, edits []overwriteEdit) error {
	current, err := s.platform.ChannelMetadata(ctx, ticket.ChannelID)
	if err != nil {
		return apperrors.NewPlatformFailure(op, err, false, false)
	}
	if !sameMetadata(current, ticket.Raw) {
		return apperrors.NewNoLongerEligible("ticket changed while processing, no longer eligible")
	}

	for i, edit := range edits {
		if err := s.platform.SetPermissionOverwrite(ctx, ticket.ChannelID, edit.principal, edit.next); err != nil {
			rolledBack := s.rollback(ctx, ticket.ChannelID, edits[:i])
			s.logger.Warn("permission edit failed",
				zap.String("operation", op),
				zap.Stringer("channel_id", ticket.ChannelID),
				zap.Stringer("principal_id", edit.principal.ID),
				zap.Bool("rolled_back", rolledBack),
				zap.Error(err))
			return apperrors.NewPlatformFailure(op, err, i > 0, rolledBack)
		}
	}

	if next == ticket.State {
		return nil
	}
	encoded := domain.EncodeMetadata(next)
	if err := s.platform.SetChannelMetadata(ctx, ticket.ChannelID, encoded); err != nil {
		rolledBack := s.rollback(ctx, ticket.ChannelID, edits)
		s.logger.Warn("metadata write failed",
			zap.String("operation", op),
			zap.Stringer("channel_id", ticket.ChannelID),
			zap.Bool("rolled_back", rolledBack),
			zap.Error(err))
		return apperrors.NewPlatformFailure(op, err, len(edits) > 0, rolledBack)
	}
	ticket.State = next
	ticket.Raw = &encoded
	return nil
}

// rollback restores applied edits in reverse order. It outlives the caller's
// context so an expired request still gets compensated.
func (s *LifecycleService) rollback(ctx context.Context, channelID domain.Snowflake, applied []overwriteEdit) bool {
	if len(applied) == 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	ok := true
	for i := len(applied) - 1; i >= 0; i-- {
		edit := applied[i]
		if err := s.platform.SetPermissionOverwrite(ctx, channelID, edit.principal, edit.prev); err != nil {
			ok = false
			s.logger.Error("permission rollback failed",
				zap.Stringer("channel_id", channelID),
				zap.Stringer("principal_id", edit.principal.ID),
				zap.Error(err))
		}
	}
	return ok
}

func (s *LifecycleService) announce(ctx context.Context, channelID domain.Snowflake, content string) {
	if err := s.platform.SendMessage(ctx, channelID, platform.OutgoingMessage{Content: content}); err != nil {
		s.logger.Warn("ticket announcement failed", zap.Stringer("channel_id", channelID), zap.Error(err))
	}
}

func (s *LifecycleService) publish(ctx context.Context, eventType events.EventType, ticket *domain.TicketHandle, actorID domain.Snowflake, payload any) {
	s.logger.Info(string(eventType),
		zap.Stringer("channel_id", ticket.ChannelID),
		zap.Stringer("actor_id", actorID),
		zap.Stringer("creator_id", ticket.State.Creator),
		zap.Stringer("claimant_id", ticket.State.Claimant))
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		ChannelID:   ticket.ChannelID,
		ChannelName: ticket.Name,
		ActorID:     actorID,
		State:       ticket.State,
		Timestamp:   s.now(),
		Payload:     payload,
	})
}

func (s *LifecycleService) record(transition string, err error) {
	outcome := "accepted"
	switch {
	case err == nil:
	case apperrors.IsDenial(err):
		outcome = "denied"
	default:
		outcome = "failed"
	}
	s.metrics.RecordTransition(transition, outcome)
}

func sameMetadata(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
