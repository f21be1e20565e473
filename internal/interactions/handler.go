// Package interactions presents the ticket engine on Discord: owner panels,
// request modals, lifecycle buttons and in-ticket prefix commands.
package interactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	platformdiscord "github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const defaultTimeout = 2 * time.Minute

// Session is the subset of *discordgo.Session the presenter replies through.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Config holds presenter settings.
type Config struct {
	GuildID       domain.Snowflake
	Prefix        string
	OwnerID       domain.Snowflake
	PanelImageURL string
	// Timeout bounds one interaction or command, close delay included.
	Timeout time.Duration
}

// Handler routes Discord events to the provisioner and the lifecycle.
type Handler struct {
	session     Session
	lifecycle   *service.LifecycleService
	provisioner *service.ProvisionerService
	cfg         Config
	logger      *zap.Logger
}

// NewHandler constructs the presenter.
func NewHandler(session Session, lifecycle *service.LifecycleService, provisioner *service.ProvisionerService, cfg Config, logger *zap.Logger) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{session: session, lifecycle: lifecycle, provisioner: provisioner, cfg: cfg, logger: logger}
}

// Register attaches the handler to a live session.
func (h *Handler) Register(s *discordgo.Session) {
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
		defer cancel()
		h.HandleMessage(ctx, m.Message)
	})
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
		defer cancel()
		h.HandleInteraction(ctx, i.Interaction)
	})
}

// HandleMessage runs a prefix command. Messages from bots, other guilds or
// without the prefix are ignored.
func (h *Handler) HandleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || !h.inGuild(m.GuildID) {
		return
	}
	cmd, ok := ParseCommand(m.Content, h.cfg.Prefix)
	if !ok {
		return
	}
	actorID, ok := domain.ParseSnowflake(m.Author.ID)
	if !ok {
		return
	}
	channelID, ok := domain.ParseSnowflake(m.ChannelID)
	if !ok {
		return
	}
	logger := h.logger.With(zap.String("command", cmd.Name), zap.Stringer("channel_id", channelID), zap.Stringer("actor_id", actorID))

	var err error
	switch cmd.Name {
	case cmdMain, cmdIndex, cmdSupport:
		if actorID != h.cfg.OwnerID {
			return
		}
		msg, _ := PanelMessage(cmd.Name, h.cfg.PanelImageURL)
		if _, err := h.session.ChannelMessageSendComplex(m.ChannelID, msg, discordgo.WithContext(ctx)); err != nil {
			logger.Warn("post panel failed", zap.Error(err))
		}
		return
	case cmdHelp:
		h.reply(ctx, m, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎫 Ticket Commands",
			Description: helpText(h.cfg.Prefix),
			Color:       panelColor,
		}}})
		return
	case cmdClaim:
		_, err = h.lifecycle.Claim(ctx, actorID, channelID)
	case cmdUnclaim:
		_, err = h.lifecycle.Unclaim(ctx, actorID, channelID)
	case cmdClose:
		_, err = h.lifecycle.Close(ctx, actorID, channelID)
	case cmdTransfer, cmdAdd:
		if len(cmd.Args) == 0 {
			h.reply(ctx, m, &discordgo.MessageSend{Content: "❌ Please provide a user ID or mention."})
			return
		}
		target, ok := ParseUserRef(cmd.Args[0])
		if !ok {
			h.reply(ctx, m, &discordgo.MessageSend{Content: "❌ User not found."})
			return
		}
		if cmd.Name == cmdTransfer {
			_, err = h.lifecycle.Transfer(ctx, actorID, target, channelID)
		} else {
			_, err = h.lifecycle.AddParticipant(ctx, actorID, target, channelID)
		}
	default:
		return
	}
	if err != nil {
		h.logFailure(logger, err)
		h.reply(ctx, m, &discordgo.MessageSend{Content: failureText(err)})
	}
}

// HandleInteraction serves panel buttons, request modals and lifecycle
// controls.
func (h *Handler) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || !h.inGuild(i.GuildID) {
		return
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		h.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		h.handleModal(ctx, i)
	}
}

func (h *Handler) handleComponent(ctx context.Context, i *discordgo.Interaction) {
	customID := i.MessageComponentData().CustomID
	switch {
	case customID == panelSelect:
		h.respond(ctx, i, selectorResponse())
		return
	case strings.HasPrefix(customID, panelPrefix):
		category, ok := categoryFrom(customID, panelPrefix)
		if !ok {
			return
		}
		modal, _ := FormModal(category)
		h.respond(ctx, i, modal)
		return
	case strings.HasPrefix(customID, platformdiscord.ControlPrefix):
	default:
		return
	}

	kind := platform.ControlKind(strings.TrimPrefix(customID, platformdiscord.ControlPrefix))
	actorID, channelID, ok := interactionIDs(i)
	if !ok {
		return
	}
	logger := h.logger.With(zap.String("control", string(kind)), zap.Stringer("channel_id", channelID), zap.Stringer("actor_id", actorID))
	if !h.deferEphemeral(ctx, i, logger) {
		return
	}

	var (
		err  error
		done string
	)
	switch kind {
	case platform.ControlClaim:
		_, err = h.lifecycle.Claim(ctx, actorID, channelID)
		done = "✅ Ticket claimed."
	case platform.ControlUnclaim:
		_, err = h.lifecycle.Unclaim(ctx, actorID, channelID)
		done = "✅ Ticket unclaimed."
	case platform.ControlClose:
		_, err = h.lifecycle.Close(ctx, actorID, channelID)
	default:
		err = apperrors.NewValidationError("unknown control", map[string]any{"control": string(kind)})
	}
	if err != nil {
		h.logFailure(logger, err)
		h.edit(ctx, i, failureText(err), logger)
		return
	}
	// A closed ticket's channel is gone, and the reply with it.
	if done != "" {
		h.edit(ctx, i, done, logger)
	}
}

func (h *Handler) handleModal(ctx context.Context, i *discordgo.Interaction) {
	data := i.ModalSubmitData()
	category, ok := categoryFrom(data.CustomID, formPrefix)
	if !ok {
		return
	}
	actorID, _, ok := interactionIDs(i)
	if !ok {
		return
	}
	logger := h.logger.With(zap.String("category", string(category)), zap.Stringer("actor_id", actorID))
	if !h.deferEphemeral(ctx, i, logger) {
		return
	}

	form, _ := domain.FormFor(category)
	fields, err := form.Collect(ModalAnswers(data.Components))
	if err != nil {
		h.edit(ctx, i, "❌ "+err.Error(), logger)
		return
	}
	ticket, err := h.provisioner.CreateTicket(ctx, domain.TicketRequest{
		Category:  category,
		Requester: domain.Requester{ID: actorID, Name: interactionUser(i).Username},
		Fields:    fields,
	})
	if err != nil {
		h.logFailure(logger, err)
		h.edit(ctx, i, failureText(err), logger)
		return
	}
	h.edit(ctx, i, fmt.Sprintf("✅ Ticket created: <#%s>", ticket.ChannelID), logger)
}

func (h *Handler) inGuild(guildID string) bool {
	id, ok := domain.ParseSnowflake(guildID)
	return ok && id == h.cfg.GuildID
}

func (h *Handler) respond(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := h.session.InteractionRespond(i, resp, discordgo.WithContext(ctx)); err != nil {
		h.logger.Warn("interaction response failed", zap.String("interaction_id", i.ID), zap.Error(err))
	}
}

func (h *Handler) deferEphemeral(ctx context.Context, i *discordgo.Interaction, logger *zap.Logger) bool {
	err := h.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		logger.Warn("defer interaction failed", zap.Error(err))
		return false
	}
	return true
}

func (h *Handler) edit(ctx context.Context, i *discordgo.Interaction, content string, logger *zap.Logger) {
	if _, err := h.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); err != nil {
		logger.Warn("edit interaction response failed", zap.Error(err))
	}
}

func (h *Handler) reply(ctx context.Context, m *discordgo.Message, msg *discordgo.MessageSend) {
	msg.Reference = m.Reference()
	if _, err := h.session.ChannelMessageSendComplex(m.ChannelID, msg, discordgo.WithContext(ctx)); err != nil {
		h.logger.Warn("command reply failed", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

func (h *Handler) logFailure(logger *zap.Logger, err error) {
	if apperrors.IsDenial(err) {
		logger.Info("ticket action denied", zap.Error(err))
		return
	}
	logger.Error("ticket action failed", zap.Error(err))
}

func failureText(err error) string {
	return "❌ " + apperrors.ToDomainError(err).Message
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

func interactionIDs(i *discordgo.Interaction) (actorID, channelID domain.Snowflake, ok bool) {
	actorID, ok = domain.ParseSnowflake(interactionUser(i).ID)
	if !ok {
		return 0, 0, false
	}
	channelID, ok = domain.ParseSnowflake(i.ChannelID)
	return actorID, channelID, ok
}
