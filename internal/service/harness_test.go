package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/policy"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	guildID      domain.Snowflake = 1
	staffRole    domain.Snowflake = 10
	tradeRole    domain.Snowflake = 21
	containerID  domain.Snowflake = 100
	logChannelID domain.Snowflake = 200
	ticketID     domain.Snowflake = 300

	creatorID  domain.Snowflake = 501
	staffA     domain.Snowflake = 601
	staffB     domain.Snowflake = 602
	outsider   domain.Snowflake = 700
	overrideID domain.Snowflake = 900
)

var openAccess = platform.Overwrite{View: platform.Allow, Send: platform.Allow}

type harness struct {
	fake        *platformtest.Fake
	lifecycle   *LifecycleService
	provisioner *ProvisionerService
	metrics     *observability.Metrics
	dispatcher  events.Dispatcher

	mu        sync.Mutex
	published []events.Event
}

func newHarness(t *testing.T, scope policy.OverrideScope) *harness {
	t.Helper()

	fake := platformtest.New()
	fake.AddMember(creatorID)
	fake.AddMember(staffA, staffRole)
	fake.AddMember(staffB, staffRole)
	fake.AddMember(outsider)

	h := &harness{
		fake:       fake,
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(nil),
	}
	events.SubscribeAll(h.dispatcher, func(_ context.Context, event events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.published = append(h.published, event)
		return nil
	})

	pol := policy.New(policy.Config{
		StaffRoles:    []domain.Snowflake{staffRole},
		OverrideID:    overrideID,
		OverrideScope: scope,
	})
	h.lifecycle = NewLifecycleService(LifecycleDependencies{
		Platform:   fake,
		Policy:     pol,
		Archiver:   NewArchiveService(fake, ArchiveConfig{LogChannelID: logChannelID}, nil),
		Dispatcher: h.dispatcher,
		Metrics:    h.metrics,
		Config:     LifecycleConfig{TicketContainerID: containerID},
	})
	h.provisioner = NewProvisionerService(ProvisionerDependencies{
		Platform:   fake,
		Dispatcher: h.dispatcher,
		Metrics:    h.metrics,
		Config: ProvisionerConfig{
			TicketContainerID: containerID,
			EveryoneRoleID:    guildID,
			StaffRoles:        []domain.Snowflake{staffRole},
			PageRoles:         map[domain.TicketCategory]domain.Snowflake{domain.CategoryTrade: tradeRole},
		},
	})
	return h
}

// seedTicket adds a ticket channel as the provisioner would have left it,
// with the given raw metadata and claimant overwrites.
func (h *harness) seedTicket(metadata string, claimant domain.Snowflake, history ...platform.HistoryMessage) {
	overwrites := map[platform.Principal]platform.Overwrite{
		platform.Role(guildID):     {View: platform.Deny},
		platform.Member(creatorID): openAccess,
		platform.Role(staffRole):   openAccess,
	}
	if claimant != domain.Unclaimed {
		overwrites[platform.Role(staffRole)] = platform.Overwrite{View: platform.Allow, Send: platform.Deny}
		overwrites[platform.Member(claimant)] = platform.Overwrite{Send: platform.Allow}
	}
	h.fake.AddChannel(platform.ChannelInfo{
		ID:         ticketID,
		ParentID:   containerID,
		Name:       "trade-alice",
		Metadata:   &metadata,
		Overwrites: overwrites,
	}, history...)
}

func (h *harness) snapshot(t *testing.T) platform.ChannelInfo {
	t.Helper()
	info, ok := h.fake.Snapshot(ticketID)
	require.True(t, ok, "ticket channel should exist")
	return info
}

func (h *harness) metadata(t *testing.T) string {
	t.Helper()
	info := h.snapshot(t)
	require.NotNil(t, info.Metadata)
	return *info.Metadata
}

func (h *harness) eventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]events.EventType, 0, len(h.published))
	for _, event := range h.published {
		types = append(types, event.Type)
	}
	return types
}

func (h *harness) lastEvent() events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.published[len(h.published)-1]
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
	return apperrors.ToDomainError(err)
}

func historyAt(id domain.Snowflake, minute int, author, content string) platform.HistoryMessage {
	return platform.HistoryMessage{
		ID:        id,
		Timestamp: time.Date(2024, 3, 1, 12, minute, 0, 0, time.UTC),
		Author:    author,
		Content:   content,
	}
}
