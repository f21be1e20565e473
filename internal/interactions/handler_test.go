package interactions

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/policy"
	"github.com/spec-kit/ticket-bot/internal/service"
)

const (
	guildID     domain.Snowflake = 1
	ownerID     domain.Snowflake = 42
	staffRole   domain.Snowflake = 10
	containerID domain.Snowflake = 100
	ticketID    domain.Snowflake = 300
	creatorID   domain.Snowflake = 501
	staffA      domain.Snowflake = 601
	staffB      domain.Snowflake = 602
	outsider    domain.Snowflake = 700
)

type recordedSend struct {
	channelID string
	data      *discordgo.MessageSend
}

type stubSession struct {
	responses []*discordgo.InteractionResponse
	edits     []string
	sent      []recordedSend
}

func (s *stubSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	s.responses = append(s.responses, resp)
	return nil
}

func (s *stubSession) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.edits = append(s.edits, *edit.Content)
	return &discordgo.Message{}, nil
}

func (s *stubSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.sent = append(s.sent, recordedSend{channelID: channelID, data: data})
	return &discordgo.Message{}, nil
}

type presenter struct {
	handler   *Handler
	session   *stubSession
	fake      *platformtest.Fake
	lifecycle *service.LifecycleService
}

func newPresenter(t *testing.T) *presenter {
	t.Helper()

	fake := platformtest.New()
	fake.AddMember(creatorID)
	fake.AddMember(staffA, staffRole)
	fake.AddMember(staffB, staffRole)
	fake.AddMember(outsider)
	metadata := domain.EncodeMetadata(domain.TicketState{Creator: creatorID})
	fake.AddChannel(platform.ChannelInfo{
		ID:       ticketID,
		ParentID: containerID,
		Name:     "trade-alice",
		Metadata: &metadata,
		Overwrites: map[platform.Principal]platform.Overwrite{
			platform.Role(staffRole): {View: platform.Allow, Send: platform.Allow},
		},
	})

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Platform:   fake,
		Policy:     policy.New(policy.Config{StaffRoles: []domain.Snowflake{staffRole}}),
		Archiver:   service.NewArchiveService(fake, service.ArchiveConfig{}, logger),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Config:     service.LifecycleConfig{TicketContainerID: containerID},
	})
	provisioner := service.NewProvisionerService(service.ProvisionerDependencies{
		Platform:   fake,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Config: service.ProvisionerConfig{
			TicketContainerID: containerID,
			EveryoneRoleID:    guildID,
			StaffRoles:        []domain.Snowflake{staffRole},
		},
	})

	session := &stubSession{}
	handler := NewHandler(session, lifecycle, provisioner, Config{
		GuildID: guildID,
		Prefix:  "$",
		OwnerID: ownerID,
	}, logger)
	return &presenter{handler: handler, session: session, fake: fake, lifecycle: lifecycle}
}

func message(author domain.Snowflake, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "9000",
		GuildID:   guildID.String(),
		ChannelID: ticketID.String(),
		Content:   content,
		Author:    &discordgo.User{ID: author.String(), Username: "user" + author.String()},
	}
}

func component(user domain.Snowflake, customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "8000",
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   guildID.String(),
		ChannelID: ticketID.String(),
		Member:    &discordgo.Member{User: &discordgo.User{ID: user.String(), Username: "alice"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID, ComponentType: discordgo.ButtonComponent},
	}
}

func modalSubmit(user domain.Snowflake, customID string, answers map[string]string) *discordgo.Interaction {
	var rows []discordgo.MessageComponent
	for key, value := range answers {
		rows = append(rows, &discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: key, Value: value},
		}})
	}
	return &discordgo.Interaction{
		ID:        "8001",
		Type:      discordgo.InteractionModalSubmit,
		GuildID:   guildID.String(),
		ChannelID: "400",
		Member:    &discordgo.Member{User: &discordgo.User{ID: user.String(), Username: "Alice"}},
		Data:      discordgo.ModalSubmitInteractionData{CustomID: customID, Components: rows},
	}
}

func (p *presenter) claimant(t *testing.T) domain.Snowflake {
	t.Helper()
	ticket, err := p.lifecycle.Ticket(context.Background(), ticketID)
	require.NoError(t, err)
	return ticket.State.Claimant
}

func TestOwnerPostsPanel(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleMessage(context.Background(), message(ownerID, "$support"))
	require.Len(t, p.session.sent, 1)
	assert.Equal(t, ticketID.String(), p.session.sent[0].channelID)
	assert.Equal(t, "Support / Report", p.session.sent[0].data.Embeds[0].Title)

	p.handler.HandleMessage(context.Background(), message(outsider, "$main"))
	assert.Len(t, p.session.sent, 1)
}

func TestIgnoredMessages(t *testing.T) {
	p := newPresenter(t)

	bot := message(staffA, "$claim")
	bot.Author.Bot = true
	p.handler.HandleMessage(context.Background(), bot)

	foreign := message(staffA, "$claim")
	foreign.GuildID = "2"
	p.handler.HandleMessage(context.Background(), foreign)

	p.handler.HandleMessage(context.Background(), message(staffA, "claim"))

	assert.Equal(t, domain.Unclaimed, p.claimant(t))
	assert.Empty(t, p.session.sent)
}

func TestClaimCommand(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleMessage(context.Background(), message(staffA, "$claim"))

	assert.Equal(t, staffA, p.claimant(t))
	assert.Empty(t, p.session.sent)
	announcements := p.fake.Sent(ticketID)
	require.NotEmpty(t, announcements)
	assert.Contains(t, announcements[len(announcements)-1].Content, "has claimed this ticket")
}

func TestDeniedCommandRepliesWithReason(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleMessage(context.Background(), message(outsider, "$claim"))

	assert.Equal(t, domain.Unclaimed, p.claimant(t))
	require.Len(t, p.session.sent, 1)
	reply := p.session.sent[0].data
	assert.True(t, strings.HasPrefix(reply.Content, "❌ "))
	require.NotNil(t, reply.Reference)
	assert.Equal(t, "9000", reply.Reference.MessageID)
}

func TestTransferCommand(t *testing.T) {
	p := newPresenter(t)
	p.handler.HandleMessage(context.Background(), message(staffA, "$claim"))

	p.handler.HandleMessage(context.Background(), message(staffA, "$transfer"))
	require.Len(t, p.session.sent, 1)
	assert.Equal(t, "❌ Please provide a user ID or mention.", p.session.sent[0].data.Content)

	p.handler.HandleMessage(context.Background(), message(staffA, "$transfer <@602>"))
	assert.Equal(t, staffB, p.claimant(t))
	assert.Len(t, p.session.sent, 1)
}

func TestAddCommandRejectsRoleMention(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleMessage(context.Background(), message(staffA, "$add <@&10>"))
	require.Len(t, p.session.sent, 1)
	assert.Equal(t, "❌ User not found.", p.session.sent[0].data.Content)
}

func TestHelpCommand(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleMessage(context.Background(), message(outsider, "$help"))
	require.Len(t, p.session.sent, 1)
	assert.Contains(t, p.session.sent[0].data.Embeds[0].Description, "$claim")
}

func TestClaimButton(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleInteraction(context.Background(), component(staffA, "ticket:claim"))

	assert.Equal(t, staffA, p.claimant(t))
	require.Len(t, p.session.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, p.session.responses[0].Type)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, p.session.responses[0].Data.Flags)
	assert.Equal(t, []string{"✅ Ticket claimed."}, p.session.edits)
}

func TestDeniedButtonEditsEphemeralReply(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleInteraction(context.Background(), component(outsider, "ticket:unclaim"))

	require.Len(t, p.session.edits, 1)
	assert.True(t, strings.HasPrefix(p.session.edits[0], "❌ "))
}

func TestPanelButtonsOpenForms(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleInteraction(context.Background(), component(creatorID, "panel:trade"))
	p.handler.HandleInteraction(context.Background(), component(creatorID, "panel:select"))
	p.handler.HandleInteraction(context.Background(), component(creatorID, "panel:lottery"))

	require.Len(t, p.session.responses, 2)
	assert.Equal(t, discordgo.InteractionResponseModal, p.session.responses[0].Type)
	assert.Equal(t, "ticket_form:trade", p.session.responses[0].Data.CustomID)
	assert.Equal(t, "Choose ticket type:", p.session.responses[1].Data.Content)
}

func TestModalSubmitCreatesTicket(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleInteraction(context.Background(), modalSubmit(creatorID, "ticket_form:support", map[string]string{
		"issue":    "lost my item",
		"proof":    "screenshot",
		"patience": "yes",
	}))

	require.Len(t, p.session.edits, 1)
	assert.Equal(t, "✅ Ticket created: <#5001>", p.session.edits[0])
	info, ok := p.fake.Snapshot(5001)
	require.True(t, ok)
	assert.Equal(t, "support-alice", info.Name)
	assert.Equal(t, containerID, info.ParentID)
}

func TestModalSubmitMissingAnswers(t *testing.T) {
	p := newPresenter(t)

	p.handler.HandleInteraction(context.Background(), modalSubmit(creatorID, "ticket_form:report", map[string]string{
		"reported_user": "bob",
	}))

	require.Len(t, p.session.edits, 1)
	assert.True(t, strings.HasPrefix(p.session.edits[0], "❌ missing answers"))
	_, ok := p.fake.Snapshot(5001)
	assert.False(t, ok)
}
