// Package discord implements platform.Platform over the Discord REST API.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sort"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const (
	historyPageSize = 100
	managedBits     = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
	embedColor      = 0x2f3136
)

// ControlPrefix prefixes the custom IDs of lifecycle buttons.
const ControlPrefix = "ticket:"

// ControlCustomID returns the button custom ID for kind.
func ControlCustomID(kind platform.ControlKind) string {
	return ControlPrefix + string(kind)
}

// Session is the subset of *discordgo.Session the adapter calls.
type Session interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Platform talks to one guild.
type Platform struct {
	session Session
	guildID domain.Snowflake
}

// New returns a Platform for guildID.
func New(session Session, guildID domain.Snowflake) *Platform {
	return &Platform{session: session, guildID: guildID}
}

func (p *Platform) CreateChannel(ctx context.Context, spec platform.ChannelSpec) (*platform.ChannelInfo, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(spec.Overwrites))
	for principal, overwrite := range spec.Overwrites {
		allow, deny := overwriteBits(overwrite)
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    principal.ID.String(),
			Type:  overwriteType(principal.Kind),
			Allow: allow,
			Deny:  deny,
		})
	}
	sort.Slice(overwrites, func(i, j int) bool { return overwrites[i].ID < overwrites[j].ID })

	ch, err := p.session.GuildChannelCreateComplex(p.guildID.String(), discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Metadata,
		ParentID:             spec.ParentID.String(),
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("create channel", err)
	}
	return channelInfo(ch)
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID domain.Snowflake) error {
	if _, err := p.session.ChannelDelete(channelID.String(), discordgo.WithContext(ctx)); err != nil {
		return mapError("delete channel", err)
	}
	return nil
}

func (p *Platform) Channel(ctx context.Context, channelID domain.Snowflake) (*platform.ChannelInfo, error) {
	ch, err := p.session.Channel(channelID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("get channel", err)
	}
	return channelInfo(ch)
}

func (p *Platform) ChannelMetadata(ctx context.Context, channelID domain.Snowflake) (*string, error) {
	ch, err := p.session.Channel(channelID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("get channel", err)
	}
	return topic(ch), nil
}

func (p *Platform) SetChannelMetadata(ctx context.Context, channelID domain.Snowflake, metadata string) error {
	if _, err := p.session.ChannelEdit(channelID.String(), &discordgo.ChannelEdit{Topic: metadata}, discordgo.WithContext(ctx)); err != nil {
		return mapError("set topic", err)
	}
	return nil
}

// SetPermissionOverwrite rewrites the view and send bits of principal's
// overwrite and keeps any other bits it carries.
func (p *Platform) SetPermissionOverwrite(ctx context.Context, channelID domain.Snowflake, principal platform.Principal, overwrite platform.Overwrite) error {
	ch, err := p.session.Channel(channelID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return mapError("get channel", err)
	}
	var allow, deny int64
	target := principal.ID.String()
	for _, po := range ch.PermissionOverwrites {
		if po.ID == target {
			allow, deny = po.Allow&^managedBits, po.Deny&^managedBits
			break
		}
	}
	setAllow, setDeny := overwriteBits(overwrite)
	allow |= setAllow
	deny |= setDeny

	if allow == 0 && deny == 0 {
		err = p.session.ChannelPermissionDelete(channelID.String(), target, discordgo.WithContext(ctx))
		if errors.Is(mapError("", err), platform.ErrNotFound) {
			return nil
		}
	} else {
		err = p.session.ChannelPermissionSet(channelID.String(), target, overwriteType(principal.Kind), allow, deny, discordgo.WithContext(ctx))
	}
	if err != nil {
		return mapError("set permission", err)
	}
	return nil
}

// ReadHistory pages forward from the oldest message. Discord returns each
// page newest first, so pages are re-sorted before yielding.
func (p *Platform) ReadHistory(ctx context.Context, channelID domain.Snowflake) iter.Seq2[platform.HistoryMessage, error] {
	return func(yield func(platform.HistoryMessage, error) bool) {
		after := "0"
		for {
			if err := ctx.Err(); err != nil {
				yield(platform.HistoryMessage{}, err)
				return
			}
			page, err := p.session.ChannelMessages(channelID.String(), historyPageSize, "", after, "", discordgo.WithContext(ctx))
			if err != nil {
				yield(platform.HistoryMessage{}, mapError("read history", err))
				return
			}
			msgs, err := sortPage(page)
			if err != nil {
				yield(platform.HistoryMessage{}, err)
				return
			}
			for _, msg := range msgs {
				if !yield(msg, nil) {
					return
				}
			}
			if len(page) < historyPageSize {
				return
			}
			after = msgs[len(msgs)-1].ID.String()
		}
	}
}

func (p *Platform) MemberRoles(ctx context.Context, userID domain.Snowflake) ([]domain.Snowflake, error) {
	member, err := p.session.GuildMember(p.guildID.String(), userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("get member", err)
	}
	roles := make([]domain.Snowflake, 0, len(member.Roles))
	for _, raw := range member.Roles {
		if id, ok := domain.ParseSnowflake(raw); ok {
			roles = append(roles, id)
		}
	}
	return roles, nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID domain.Snowflake, msg platform.OutgoingMessage) error {
	if _, err := p.session.ChannelMessageSendComplex(channelID.String(), MessageSend(msg), discordgo.WithContext(ctx)); err != nil {
		return mapError("send message", err)
	}
	return nil
}

// MessageSend renders an outgoing message: title and fields become an embed,
// controls become a button row.
func MessageSend(msg platform.OutgoingMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Title != "" || len(msg.Fields) > 0 {
		embed := &discordgo.MessageEmbed{Title: msg.Title, Color: embedColor}
		for _, field := range msg.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: field.Label, Value: field.Value})
		}
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if len(msg.Controls) > 0 {
		row := discordgo.ActionsRow{}
		for _, kind := range msg.Controls {
			row.Components = append(row.Components, controlButton(kind))
		}
		send.Components = []discordgo.MessageComponent{row}
	}
	for _, attachment := range msg.Attachments {
		send.Files = append(send.Files, &discordgo.File{
			Name:        attachment.Name,
			ContentType: attachment.ContentType,
			Reader:      bytes.NewReader(attachment.Data),
		})
	}
	return send
}

func controlButton(kind platform.ControlKind) discordgo.Button {
	button := discordgo.Button{CustomID: ControlCustomID(kind)}
	switch kind {
	case platform.ControlClaim:
		button.Label, button.Style = "Claim", discordgo.SuccessButton
	case platform.ControlUnclaim:
		button.Label, button.Style = "Unclaim", discordgo.SecondaryButton
	case platform.ControlClose:
		button.Label, button.Style = "Close", discordgo.DangerButton
	default:
		button.Label, button.Style = string(kind), discordgo.PrimaryButton
	}
	return button
}

func overwriteType(kind platform.PrincipalKind) discordgo.PermissionOverwriteType {
	if kind == platform.MemberPrincipal {
		return discordgo.PermissionOverwriteTypeMember
	}
	return discordgo.PermissionOverwriteTypeRole
}

func overwriteBits(overwrite platform.Overwrite) (allow, deny int64) {
	apply := func(p platform.Permission, bit int64) {
		switch p {
		case platform.Allow:
			allow |= bit
		case platform.Deny:
			deny |= bit
		}
	}
	apply(overwrite.View, discordgo.PermissionViewChannel)
	apply(overwrite.Send, discordgo.PermissionSendMessages)
	return allow, deny
}

func bitPermission(allow, deny, bit int64) platform.Permission {
	switch {
	case allow&bit != 0:
		return platform.Allow
	case deny&bit != 0:
		return platform.Deny
	default:
		return platform.Inherit
	}
}

func channelInfo(ch *discordgo.Channel) (*platform.ChannelInfo, error) {
	id, ok := domain.ParseSnowflake(ch.ID)
	if !ok {
		return nil, fmt.Errorf("channel id %q is not a snowflake", ch.ID)
	}
	parentID, _ := domain.ParseSnowflake(ch.ParentID)
	info := &platform.ChannelInfo{
		ID:         id,
		ParentID:   parentID,
		Name:       ch.Name,
		Metadata:   topic(ch),
		Overwrites: make(map[platform.Principal]platform.Overwrite, len(ch.PermissionOverwrites)),
	}
	for _, po := range ch.PermissionOverwrites {
		target, ok := domain.ParseSnowflake(po.ID)
		if !ok {
			continue
		}
		principal := platform.Role(target)
		if po.Type == discordgo.PermissionOverwriteTypeMember {
			principal = platform.Member(target)
		}
		overwrite := platform.Overwrite{
			View: bitPermission(po.Allow, po.Deny, discordgo.PermissionViewChannel),
			Send: bitPermission(po.Allow, po.Deny, discordgo.PermissionSendMessages),
		}
		if overwrite != (platform.Overwrite{}) {
			info.Overwrites[principal] = overwrite
		}
	}
	return info, nil
}

func topic(ch *discordgo.Channel) *string {
	if ch.Topic == "" {
		return nil
	}
	t := ch.Topic
	return &t
}

func sortPage(page []*discordgo.Message) ([]platform.HistoryMessage, error) {
	msgs := make([]platform.HistoryMessage, 0, len(page))
	for _, m := range page {
		id, err := strconv.ParseUint(m.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("message id %q: %w", m.ID, err)
		}
		author := "unknown"
		if m.Author != nil {
			author = m.Author.Username
		}
		msgs = append(msgs, platform.HistoryMessage{
			ID:        domain.Snowflake(id),
			Timestamp: m.Timestamp,
			Author:    author,
			Content:   m.Content,
		})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

// mapError turns Discord 404s into platform.ErrNotFound.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, platform.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ platform.Platform = (*Platform)(nil)
