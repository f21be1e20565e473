package discord

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

type permissionCall struct {
	target      string
	kind        discordgo.PermissionOverwriteType
	allow, deny int64
	deleted     bool
}

// stubSession serves one channel and a message log.
type stubSession struct {
	Session
	channel     *discordgo.Channel
	messages    []*discordgo.Message
	pages       []string
	permissions []permissionCall
	sent        []*discordgo.MessageSend
	err         error
}

func (s *stubSession) Channel(string, ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.channel, nil
}

func (s *stubSession) ChannelPermissionSet(_, targetID string, kind discordgo.PermissionOverwriteType, allow, deny int64, _ ...discordgo.RequestOption) error {
	s.permissions = append(s.permissions, permissionCall{target: targetID, kind: kind, allow: allow, deny: deny})
	return nil
}

func (s *stubSession) ChannelPermissionDelete(_, targetID string, _ ...discordgo.RequestOption) error {
	s.permissions = append(s.permissions, permissionCall{target: targetID, deleted: true})
	return nil
}

// ChannelMessages mimics Discord: up to limit messages after afterID, newest first.
func (s *stubSession) ChannelMessages(_ string, limit int, _, afterID, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	s.pages = append(s.pages, afterID)
	after, _ := strconv.ParseUint(afterID, 10, 64)
	var page []*discordgo.Message
	for _, m := range s.messages {
		id, _ := strconv.ParseUint(m.ID, 10, 64)
		if id > after && len(page) < limit {
			page = append(page, m)
		}
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (s *stubSession) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.sent = append(s.sent, data)
	return &discordgo.Message{}, nil
}

func (s *stubSession) GuildMember(_, _ string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &discordgo.Member{Roles: []string{"10", "bogus", "11"}}, nil
}

func TestChannelInfoMapsOverwrites(t *testing.T) {
	stub := &stubSession{channel: &discordgo.Channel{
		ID:       "300",
		ParentID: "100",
		Name:     "trade-alice",
		Topic:    "501 | unclaimed",
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "1", Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
			{ID: "10", Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionViewChannel, Deny: discordgo.PermissionSendMessages},
			{ID: "601", Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles},
			{ID: "602", Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionAttachFiles},
		},
	}}
	p := New(stub, 1)

	info, err := p.Channel(context.Background(), 300)
	require.NoError(t, err)
	assert.Equal(t, domain.Snowflake(100), info.ParentID)
	require.NotNil(t, info.Metadata)
	assert.Equal(t, "501 | unclaimed", *info.Metadata)
	assert.Equal(t, map[platform.Principal]platform.Overwrite{
		platform.Role(1):     {View: platform.Deny},
		platform.Role(10):    {View: platform.Allow, Send: platform.Deny},
		platform.Member(601): {Send: platform.Allow},
	}, info.Overwrites)
}

func TestEmptyTopicIsAbsent(t *testing.T) {
	p := New(&stubSession{channel: &discordgo.Channel{ID: "300"}}, 1)
	metadata, err := p.ChannelMetadata(context.Background(), 300)
	require.NoError(t, err)
	assert.Nil(t, metadata)
}

func TestSetPermissionOverwriteKeepsUnmanagedBits(t *testing.T) {
	stub := &stubSession{channel: &discordgo.Channel{
		ID: "300",
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "601", Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles},
			{ID: "602", Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionSendMessages},
		},
	}}
	p := New(stub, 1)

	require.NoError(t, p.SetPermissionOverwrite(context.Background(), 300, platform.Member(601), platform.Overwrite{}))
	require.NoError(t, p.SetPermissionOverwrite(context.Background(), 300, platform.Member(602), platform.Overwrite{}))
	require.NoError(t, p.SetPermissionOverwrite(context.Background(), 300, platform.Role(10), platform.Overwrite{View: platform.Allow, Send: platform.Deny}))

	assert.Equal(t, []permissionCall{
		{target: "601", kind: discordgo.PermissionOverwriteTypeMember, allow: discordgo.PermissionAttachFiles},
		{target: "602", deleted: true},
		{target: "10", kind: discordgo.PermissionOverwriteTypeRole, allow: discordgo.PermissionViewChannel, deny: discordgo.PermissionSendMessages},
	}, stub.permissions)
}

func TestReadHistoryPagesOldestFirst(t *testing.T) {
	stub := &stubSession{}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 230; i++ {
		stub.messages = append(stub.messages, &discordgo.Message{
			ID:        strconv.Itoa(1000 + i),
			Content:   strconv.Itoa(i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Author:    &discordgo.User{Username: "alice"},
		})
	}
	p := New(stub, 1)

	var got []platform.HistoryMessage
	for msg, err := range p.ReadHistory(context.Background(), 300) {
		require.NoError(t, err)
		got = append(got, msg)
	}
	require.Len(t, got, 230)
	for i, msg := range got {
		assert.Equal(t, strconv.Itoa(i+1), msg.Content)
	}
	assert.Equal(t, []string{"0", "1100", "1200"}, stub.pages)
}

func TestReadHistoryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(&stubSession{}, 1)

	var errs []error
	for _, err := range p.ReadHistory(ctx, 300) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestMemberRolesSkipsMalformedIDs(t *testing.T) {
	p := New(&stubSession{}, 1)
	roles, err := p.MemberRoles(context.Background(), 601)
	require.NoError(t, err)
	assert.Equal(t, []domain.Snowflake{10, 11}, roles)
}

func TestNotFoundMapping(t *testing.T) {
	stub := &stubSession{err: &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}}
	p := New(stub, 1)

	_, err := p.MemberRoles(context.Background(), 601)
	assert.ErrorIs(t, err, platform.ErrNotFound)
	_, err = p.Channel(context.Background(), 300)
	assert.ErrorIs(t, err, platform.ErrNotFound)

	stub.err = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	_, err = p.Channel(context.Background(), 300)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, platform.ErrNotFound)
}

func TestMessageSend(t *testing.T) {
	send := MessageSend(platform.OutgoingMessage{
		Content:  "hello",
		Title:    "Trade Ticket",
		Fields:   []domain.Field{{Label: "Description", Value: "sword"}},
		Controls: []platform.ControlKind{platform.ControlClaim, platform.ControlClose},
		Attachments: []platform.Attachment{{
			Name: "trade-alice.txt", ContentType: "text/plain", Data: []byte("transcript"),
		}},
	})

	require.Len(t, send.Embeds, 1)
	assert.Equal(t, "Trade Ticket", send.Embeds[0].Title)
	assert.Equal(t, "Description", send.Embeds[0].Fields[0].Name)

	require.Len(t, send.Components, 1)
	row, ok := send.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)
	claim := row.Components[0].(discordgo.Button)
	assert.Equal(t, "ticket:claim", claim.CustomID)
	assert.Equal(t, discordgo.SuccessButton, claim.Style)

	require.Len(t, send.Files, 1)
	data, err := io.ReadAll(send.Files[0].Reader)
	require.NoError(t, err)
	assert.Equal(t, "transcript", string(data))

	plain := MessageSend(platform.OutgoingMessage{Content: "hi"})
	assert.Empty(t, plain.Embeds)
	assert.Empty(t, plain.Components)
}
