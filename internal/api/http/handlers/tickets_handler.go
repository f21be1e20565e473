package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuditReader lists a channel's recorded lifecycle events.
type AuditReader interface {
	ListByChannel(ctx context.Context, channelID domain.Snowflake) ([]domain.AuditEntry, error)
}

// TicketsHandler triggers ticket lifecycle transitions on behalf of the
// authenticated actor.
type TicketsHandler struct {
	lifecycle   *service.LifecycleService
	provisioner *service.ProvisionerService
	audit       AuditReader
}

// NewTicketsHandler constructs handler. audit may be nil when no database is configured.
func NewTicketsHandler(lifecycle *service.LifecycleService, provisioner *service.ProvisionerService, audit AuditReader) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, provisioner: provisioner, audit: audit}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	form, ok := domain.FormFor(req.Category)
	if !ok {
		return apperrors.NewValidationError("unknown ticket category", map[string]any{"category": string(req.Category)})
	}
	fields, err := form.Collect(req.Answers)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	ticket, err := h.provisioner.CreateTicket(c.UserContext(), domain.TicketRequest{
		Category:  req.Category,
		Requester: domain.Requester{ID: actor, Name: req.RequesterName},
		Fields:    fields,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /tickets/:channel_id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	channelID, err := channelParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Ticket(c.UserContext(), channelID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History GET /tickets/:channel_id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	channelID, err := channelParam(c)
	if err != nil {
		return err
	}
	if h.audit == nil {
		return apperrors.NewNotFound("audit trail", nil)
	}
	entries, err := h.audit.ListByChannel(c.UserContext(), channelID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Claim POST /tickets/:channel_id/claim.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	return h.transition(c, h.lifecycle.Claim)
}

// Unclaim POST /tickets/:channel_id/unclaim.
func (h *TicketsHandler) Unclaim(c *fiber.Ctx) error {
	return h.transition(c, h.lifecycle.Unclaim)
}

// Transfer POST /tickets/:channel_id/transfer.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	var req dto.TransferRequest
	if err := c.BodyParser(&req); err != nil || req.TargetUserID == 0 {
		return apperrors.NewValidationError("target_user_id required", nil)
	}
	return h.transition(c, func(ctx context.Context, actor, channelID domain.Snowflake) (*domain.TicketHandle, error) {
		return h.lifecycle.Transfer(ctx, actor, req.TargetUserID, channelID)
	})
}

// AddParticipant POST /tickets/:channel_id/participants.
func (h *TicketsHandler) AddParticipant(c *fiber.Ctx) error {
	var req dto.ParticipantRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return apperrors.NewValidationError("user_id required", nil)
	}
	return h.transition(c, func(ctx context.Context, actor, channelID domain.Snowflake) (*domain.TicketHandle, error) {
		return h.lifecycle.AddParticipant(ctx, actor, req.UserID, channelID)
	})
}

// Close POST /tickets/:channel_id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	channelID, err := channelParam(c)
	if err != nil {
		return err
	}
	result, err := h.lifecycle.Close(c.UserContext(), actor, channelID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCloseResponse(result)})
}

type transitionFunc func(ctx context.Context, actor, channelID domain.Snowflake) (*domain.TicketHandle, error)

func (h *TicketsHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	channelID, err := channelParam(c)
	if err != nil {
		return err
	}
	ticket, err := fn(c.UserContext(), actor, channelID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func actorFrom(c *fiber.Ctx) (domain.Snowflake, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return 0, apperrors.NewUnauthorized("authentication required")
	}
	return principal.ActorID, nil
}

func channelParam(c *fiber.Ctx) (domain.Snowflake, error) {
	raw := c.Params("channel_id")
	id, ok := domain.ParseSnowflake(raw)
	if !ok {
		return 0, apperrors.NewValidationError("invalid channel id", map[string]any{"channel_id": raw})
	}
	return id, nil
}
