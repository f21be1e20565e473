// Package platform defines the chat-platform capabilities the ticket engine
// consumes. Implementations live in subpackages.
package platform

import (
	"context"
	"errors"
	"iter"
	"slices"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// ErrNotFound is returned when a channel or member does not exist.
var ErrNotFound = errors.New("platform: not found")

// Permission is a tri-state overwrite bit.
type Permission int8

const (
	// Inherit leaves the decision to role and channel defaults.
	Inherit Permission = iota
	Allow
	Deny
)

func (p Permission) String() string {
	switch p {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "inherit"
	}
}

// PrincipalKind distinguishes role overwrites from member overwrites.
type PrincipalKind uint8

const (
	RolePrincipal PrincipalKind = iota
	MemberPrincipal
)

// Principal is the subject of a permission overwrite.
type Principal struct {
	Kind PrincipalKind
	ID   domain.Snowflake
}

// Role returns the principal for a role.
func Role(id domain.Snowflake) Principal { return Principal{Kind: RolePrincipal, ID: id} }

// Member returns the principal for a user.
func Member(id domain.Snowflake) Principal { return Principal{Kind: MemberPrincipal, ID: id} }

// Overwrite holds the channel bits the ticket engine manages.
type Overwrite struct {
	View Permission
	Send Permission
}

// ChannelInfo is a snapshot of a channel.
type ChannelInfo struct {
	ID       domain.Snowflake
	ParentID domain.Snowflake
	Name     string
	// Metadata is nil when the channel has no topic.
	Metadata   *string
	Overwrites map[Principal]Overwrite
}

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	ParentID   domain.Snowflake
	Name       string
	Metadata   string
	Overwrites map[Principal]Overwrite
}

// HistoryMessage is one message read back from a channel.
type HistoryMessage struct {
	ID        domain.Snowflake
	Timestamp time.Time
	Author    string
	Content   string
}

// ControlKind identifies a lifecycle button attached to a message.
type ControlKind string

const (
	ControlClaim   ControlKind = "claim"
	ControlUnclaim ControlKind = "unclaim"
	ControlClose   ControlKind = "close"
)

// Attachment is a file sent alongside a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// OutgoingMessage is a message to post. Title and Fields render as a
// structured summary where the platform supports it.
type OutgoingMessage struct {
	Content     string
	Title       string
	Fields      []domain.Field
	Controls    []ControlKind
	Attachments []Attachment
}

// Platform is the capability surface of the chat platform.
type Platform interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (*ChannelInfo, error)
	DeleteChannel(ctx context.Context, channelID domain.Snowflake) error
	Channel(ctx context.Context, channelID domain.Snowflake) (*ChannelInfo, error)
	ChannelMetadata(ctx context.Context, channelID domain.Snowflake) (*string, error)
	SetChannelMetadata(ctx context.Context, channelID domain.Snowflake, metadata string) error
	// SetPermissionOverwrite replaces the managed bits of principal's overwrite.
	SetPermissionOverwrite(ctx context.Context, channelID domain.Snowflake, principal Principal, overwrite Overwrite) error
	// ReadHistory yields messages oldest first. A non-nil error ends the sequence.
	ReadHistory(ctx context.Context, channelID domain.Snowflake) iter.Seq2[HistoryMessage, error]
	MemberRoles(ctx context.Context, userID domain.Snowflake) ([]domain.Snowflake, error)
	SendMessage(ctx context.Context, channelID domain.Snowflake, msg OutgoingMessage) error
}

// HasRole reports whether userID currently holds any of roleIDs. A user who
// is not a member yields ErrNotFound.
func HasRole(ctx context.Context, p Platform, userID domain.Snowflake, roleIDs ...domain.Snowflake) (bool, error) {
	roles, err := p.MemberRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if slices.Contains(roleIDs, role) {
			return true, nil
		}
	}
	return false, nil
}
