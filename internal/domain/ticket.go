package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Snowflake is a chat-platform identifier for users, roles and channels.
// The zero value never names a real entity.
type Snowflake uint64

const (
	// UnknownCreator is the creator of a ticket whose metadata could not be read.
	UnknownCreator Snowflake = 0
	// Unclaimed is the claimant of a ticket no staff member holds.
	Unclaimed Snowflake = 0
)

// ParseSnowflake parses a decimal identifier, also accepting mention forms
// such as <@123>, <@!123> and <@&123>.
func ParseSnowflake(raw string) (Snowflake, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<")
	raw = strings.TrimSuffix(raw, ">")
	raw = strings.TrimLeft(raw, "@!&#")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return Snowflake(id), true
}

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// MarshalText encodes s as a decimal string so JSON clients keep full precision.
func (s Snowflake) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a decimal string or mention.
func (s *Snowflake) UnmarshalText(text []byte) error {
	if len(text) == 0 || string(text) == "0" {
		*s = 0
		return nil
	}
	id, ok := ParseSnowflake(string(text))
	if !ok {
		return fmt.Errorf("invalid snowflake %q", text)
	}
	*s = id
	return nil
}

// Mention renders the user mention markup for s.
func (s Snowflake) Mention() string {
	return "<@" + s.String() + ">"
}

// RoleMention renders the role mention markup for s.
func (s Snowflake) RoleMention() string {
	return "<@&" + s.String() + ">"
}

// TicketCategory is the request type a ticket was opened for.
type TicketCategory string

const (
	CategoryTrade   TicketCategory = "trade"
	CategoryIndex   TicketCategory = "index"
	CategorySupport TicketCategory = "support"
	CategoryReport  TicketCategory = "report"
)

// Categories lists every supported category in panel order.
var Categories = []TicketCategory{CategoryTrade, CategoryIndex, CategorySupport, CategoryReport}

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// TicketState is the ownership record stored in a ticket channel's metadata.
type TicketState struct {
	Creator  Snowflake `json:"creator"`
	Claimant Snowflake `json:"claimant"`
}

// IsClaimed reports whether a staff member currently holds the ticket.
func (s TicketState) IsClaimed() bool {
	return s.Claimant != Unclaimed
}

// CreatorKnown reports whether the creator survived decoding.
func (s TicketState) CreatorKnown() bool {
	return s.Creator != UnknownCreator
}

// TicketHandle identifies a live ticket. It is produced by the provisioner or
// by loading a channel inside the ticket container; holding one means the
// channel was a ticket when it was read.
type TicketHandle struct {
	ChannelID Snowflake
	Name      string
	State     TicketState
	// Raw is the metadata exactly as read, used to detect concurrent writers.
	Raw *string
}

// Field is one answered question from a ticket request form.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Requester is the user opening a ticket.
type Requester struct {
	ID   Snowflake
	Name string
}

// TicketRequest is a submitted ticket form.
type TicketRequest struct {
	Category  TicketCategory
	Requester Requester
	Fields    []Field
}
