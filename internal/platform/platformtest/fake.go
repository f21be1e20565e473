// Package platformtest provides an in-memory Platform with fault injection.
package platformtest

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"sort"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Op names a fallible platform call.
type Op string

const (
	OpCreateChannel Op = "create_channel"
	OpDeleteChannel Op = "delete_channel"
	OpChannel       Op = "channel"
	OpSetMetadata   Op = "set_metadata"
	OpMemberRoles   Op = "member_roles"
)

type channel struct {
	info    platform.ChannelInfo
	history []platform.HistoryMessage
}

// Fake is a goroutine-safe in-memory chat platform.
type Fake struct {
	mu       sync.Mutex
	nextID   domain.Snowflake
	channels map[domain.Snowflake]*channel
	members  map[domain.Snowflake][]domain.Snowflake
	sent     map[domain.Snowflake][]platform.OutgoingMessage
	deleted  []domain.Snowflake

	opErrors         map[Op]error
	permissionErrors map[platform.Principal]error
	sendErrors       map[domain.Snowflake]error
	historyFailAfter int
	historyErr       error

	// OnMetadataRead runs before each ChannelMetadata call, outside the lock.
	OnMetadataRead func(channelID domain.Snowflake)

	// OnSend runs before each SendMessage; a non-nil error fails the send.
	OnSend func(channelID domain.Snowflake, msg platform.OutgoingMessage) error

	// PermissionCalls counts SetPermissionOverwrite attempts, including failures.
	PermissionCalls int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		nextID:           5000,
		channels:         make(map[domain.Snowflake]*channel),
		members:          make(map[domain.Snowflake][]domain.Snowflake),
		sent:             make(map[domain.Snowflake][]platform.OutgoingMessage),
		opErrors:         make(map[Op]error),
		permissionErrors: make(map[platform.Principal]error),
		sendErrors:       make(map[domain.Snowflake]error),
		historyFailAfter: -1,
	}
}

// AddMember registers userID with roles.
func (f *Fake) AddMember(userID domain.Snowflake, roles ...domain.Snowflake) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[userID] = append([]domain.Snowflake(nil), roles...)
}

// AddChannel seeds a channel directly, bypassing CreateChannel.
func (f *Fake) AddChannel(info platform.ChannelInfo, history ...platform.HistoryMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info.Overwrites == nil {
		info.Overwrites = make(map[platform.Principal]platform.Overwrite)
	}
	f.channels[info.ID] = &channel{info: info, history: history}
}

// AppendHistory adds messages to a channel's history.
func (f *Fake) AppendHistory(channelID domain.Snowflake, msgs ...platform.HistoryMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[channelID]; ok {
		ch.history = append(ch.history, msgs...)
	}
}

// FailOp makes every call of op return err until cleared with a nil err.
func (f *Fake) FailOp(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.opErrors, op)
		return
	}
	f.opErrors[op] = err
}

// FailPermission makes overwrite edits for principal fail with err.
func (f *Fake) FailPermission(principal platform.Principal, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.permissionErrors, principal)
		return
	}
	f.permissionErrors[principal] = err
}

// FailSend makes messages to channelID fail with err.
func (f *Fake) FailSend(channelID domain.Snowflake, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.sendErrors, channelID)
		return
	}
	f.sendErrors[channelID] = err
}

// FailHistoryAfter makes history reads yield n messages and then err.
func (f *Fake) FailHistoryAfter(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyFailAfter = n
	f.historyErr = err
}

// Snapshot returns a copy of the channel, or false once it is deleted.
func (f *Fake) Snapshot(channelID domain.Snowflake) (platform.ChannelInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ChannelInfo{}, false
	}
	return copyInfo(ch.info), true
}

// Sent returns messages posted to channelID.
func (f *Fake) Sent(channelID domain.Snowflake) []platform.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.OutgoingMessage(nil), f.sent[channelID]...)
}

// Deleted returns deleted channel IDs in deletion order.
func (f *Fake) Deleted() []domain.Snowflake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Snowflake(nil), f.deleted...)
}

// Channels returns the IDs of live channels.
func (f *Fake) Channels() []domain.Snowflake {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]domain.Snowflake, 0, len(f.channels))
	for id := range f.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *Fake) CreateChannel(_ context.Context, spec platform.ChannelSpec) (*platform.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.opErrors[OpCreateChannel]; err != nil {
		return nil, err
	}
	f.nextID++
	metadata := spec.Metadata
	info := platform.ChannelInfo{
		ID:         f.nextID,
		ParentID:   spec.ParentID,
		Name:       spec.Name,
		Metadata:   &metadata,
		Overwrites: maps.Clone(spec.Overwrites),
	}
	if info.Overwrites == nil {
		info.Overwrites = make(map[platform.Principal]platform.Overwrite)
	}
	f.channels[info.ID] = &channel{info: info}
	out := copyInfo(info)
	return &out, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID domain.Snowflake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.opErrors[OpDeleteChannel]; err != nil {
		return err
	}
	if _, ok := f.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *Fake) Channel(_ context.Context, channelID domain.Snowflake) (*platform.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.opErrors[OpChannel]; err != nil {
		return nil, err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	out := copyInfo(ch.info)
	return &out, nil
}

func (f *Fake) ChannelMetadata(_ context.Context, channelID domain.Snowflake) (*string, error) {
	if hook := f.OnMetadataRead; hook != nil {
		hook(channelID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	if ch.info.Metadata == nil {
		return nil, nil
	}
	metadata := *ch.info.Metadata
	return &metadata, nil
}

func (f *Fake) SetChannelMetadata(_ context.Context, channelID domain.Snowflake, metadata string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.opErrors[OpSetMetadata]; err != nil {
		return err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.info.Metadata = &metadata
	return nil
}

// SetMetadataDirect overwrites metadata without fault injection, simulating
// another writer.
func (f *Fake) SetMetadataDirect(channelID domain.Snowflake, metadata string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[channelID]; ok {
		ch.info.Metadata = &metadata
	}
}

func (f *Fake) SetPermissionOverwrite(_ context.Context, channelID domain.Snowflake, principal platform.Principal, overwrite platform.Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PermissionCalls++
	if err := f.permissionErrors[principal]; err != nil {
		return err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	if overwrite == (platform.Overwrite{}) {
		delete(ch.info.Overwrites, principal)
		return nil
	}
	ch.info.Overwrites[principal] = overwrite
	return nil
}

func (f *Fake) ReadHistory(ctx context.Context, channelID domain.Snowflake) iter.Seq2[platform.HistoryMessage, error] {
	return func(yield func(platform.HistoryMessage, error) bool) {
		f.mu.Lock()
		ch, ok := f.channels[channelID]
		if !ok {
			f.mu.Unlock()
			yield(platform.HistoryMessage{}, platform.ErrNotFound)
			return
		}
		history := append([]platform.HistoryMessage(nil), ch.history...)
		failAfter, failErr := f.historyFailAfter, f.historyErr
		f.mu.Unlock()

		for i, msg := range history {
			if failAfter >= 0 && i == failAfter {
				yield(platform.HistoryMessage{}, failErr)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(platform.HistoryMessage{}, err)
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
		if failAfter >= len(history) {
			yield(platform.HistoryMessage{}, failErr)
		}
	}
}

func (f *Fake) MemberRoles(_ context.Context, userID domain.Snowflake) ([]domain.Snowflake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.opErrors[OpMemberRoles]; err != nil {
		return nil, err
	}
	roles, ok := f.members[userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	return append([]domain.Snowflake(nil), roles...), nil
}

func (f *Fake) SendMessage(_ context.Context, channelID domain.Snowflake, msg platform.OutgoingMessage) error {
	if hook := f.OnSend; hook != nil {
		if err := hook(channelID, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErrors[channelID]; err != nil {
		return err
	}
	f.sent[channelID] = append(f.sent[channelID], msg)
	return nil
}

func copyInfo(info platform.ChannelInfo) platform.ChannelInfo {
	out := info
	if info.Metadata != nil {
		metadata := *info.Metadata
		out.Metadata = &metadata
	}
	out.Overwrites = maps.Clone(info.Overwrites)
	return out
}

var _ platform.Platform = (*Fake)(nil)
