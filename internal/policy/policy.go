// Package policy decides who may move a ticket between ownership states.
// Every predicate is pure: role membership is supplied by the caller as it
// stood at the moment of the check.
package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// OverrideScope bounds what the override identity may force.
type OverrideScope string

const (
	// OverrideAll lets the override identity unclaim, transfer, close and add
	// participants on any ticket.
	OverrideAll OverrideScope = "all"
	// OverrideUnclaimOnly restricts the override identity to force-unclaim.
	OverrideUnclaimOnly OverrideScope = "unclaim"
)

// ParseOverrideScope validates a configured scope; empty means OverrideAll.
func ParseOverrideScope(raw string) (OverrideScope, error) {
	switch OverrideScope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OverrideAll:
		return OverrideAll, nil
	case OverrideUnclaimOnly:
		return OverrideUnclaimOnly, nil
	default:
		return "", fmt.Errorf("unknown override scope %q", raw)
	}
}

// Config is the static authorization configuration.
type Config struct {
	StaffRoles    []domain.Snowflake
	OverrideID    domain.Snowflake
	OverrideScope OverrideScope
}

// Actor is the identity attempting a transition and the roles it holds now.
type Actor struct {
	ID    domain.Snowflake
	Roles []domain.Snowflake
}

// Policy evaluates transition guards.
type Policy struct {
	staffRoles map[domain.Snowflake]struct{}
	// staffOrder holds staffRoles in configured order.
	staffOrder []domain.Snowflake
	overrideID domain.Snowflake
	scope      OverrideScope
}

// New builds a Policy. The config is copied; later mutation has no effect.
func New(cfg Config) *Policy {
	roles := make(map[domain.Snowflake]struct{}, len(cfg.StaffRoles))
	order := make([]domain.Snowflake, 0, len(cfg.StaffRoles))
	for _, role := range cfg.StaffRoles {
		if _, dup := roles[role]; dup {
			continue
		}
		roles[role] = struct{}{}
		order = append(order, role)
	}
	scope := cfg.OverrideScope
	if scope == "" {
		scope = OverrideAll
	}
	return &Policy{staffRoles: roles, staffOrder: order, overrideID: cfg.OverrideID, scope: scope}
}

// StaffRoles returns the configured staff roles in configuration order,
// without duplicates.
func (p *Policy) StaffRoles() []domain.Snowflake {
	return slices.Clone(p.staffOrder)
}

// IsStaff reports whether any of roles confers staff capability.
func (p *Policy) IsStaff(roles []domain.Snowflake) bool {
	for _, role := range roles {
		if _, ok := p.staffRoles[role]; ok {
			return true
		}
	}
	return false
}

// IsOverride reports whether id is the configured override identity.
func (p *Policy) IsOverride(id domain.Snowflake) bool {
	return p.overrideID != 0 && id == p.overrideID
}

func (p *Policy) overrideMay(id domain.Snowflake, forced OverrideScope) bool {
	if !p.IsOverride(id) {
		return false
	}
	return p.scope == OverrideAll || p.scope == forced
}

// CanClaim reports whether actor is staff and nobody holds the ticket.
func (p *Policy) CanClaim(actor Actor, state domain.TicketState) bool {
	return p.IsStaff(actor.Roles) && !state.IsClaimed()
}

// CanUnclaim reports whether the ticket is held and actor is its claimant or
// the override identity.
func (p *Policy) CanUnclaim(actor Actor, state domain.TicketState) bool {
	if !state.IsClaimed() {
		return false
	}
	return actor.ID == state.Claimant || p.overrideMay(actor.ID, OverrideUnclaimOnly)
}

// CanTransfer reports whether actor holds the ticket (or is the override
// identity) and the target is staff.
func (p *Policy) CanTransfer(actor Actor, targetIsStaff bool, state domain.TicketState) bool {
	return p.CanHandOff(actor, state) && targetIsStaff
}

// CanHandOff is the actor half of CanTransfer, used to tell an unauthorized
// actor apart from an invalid target.
func (p *Policy) CanHandOff(actor Actor, state domain.TicketState) bool {
	if state.IsClaimed() && actor.ID == state.Claimant {
		return true
	}
	return p.overrideMay(actor.ID, OverrideAll)
}

// CanClose reports whether actor created or holds the ticket, or is the
// override identity.
func (p *Policy) CanClose(actor Actor, state domain.TicketState) bool {
	if state.CreatorKnown() && actor.ID == state.Creator {
		return true
	}
	if state.IsClaimed() && actor.ID == state.Claimant {
		return true
	}
	return p.overrideMay(actor.ID, OverrideAll)
}

// CanAddParticipant lets staff add users to an unclaimed ticket; once claimed
// only the claimant may.
func (p *Policy) CanAddParticipant(actor Actor, state domain.TicketState) bool {
	if p.overrideMay(actor.ID, OverrideAll) {
		return true
	}
	if !p.IsStaff(actor.Roles) {
		return false
	}
	return !state.IsClaimed() || actor.ID == state.Claimant
}
