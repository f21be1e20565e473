package domain

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestEncodeMetadata(t *testing.T) {
	assert.Equal(t, "100 | unclaimed", EncodeMetadata(TicketState{Creator: 100}))
	assert.Equal(t, "100 | 200", EncodeMetadata(TicketState{Creator: 100, Claimant: 200}))
	assert.Equal(t, "unknown | 200", EncodeMetadata(TicketState{Claimant: 200}))
}

func TestDecodeMetadata(t *testing.T) {
	cases := []struct {
		name string
		raw  *string
		want TicketState
	}{
		{"absent", nil, TicketState{}},
		{"empty", strPtr(""), TicketState{}},
		{"garbage", strPtr("garbage"), TicketState{}},
		{"unclaimed", strPtr("100 | unclaimed"), TicketState{Creator: 100}},
		{"claimed", strPtr("100 | 200"), TicketState{Creator: 100, Claimant: 200}},
		{"no separator", strPtr("100"), TicketState{Creator: 100}},
		{"bad claimant", strPtr("100 | bob"), TicketState{Creator: 100}},
		{"bad creator", strPtr("bob | 200"), TicketState{Claimant: 200}},
		{"legacy unclaimed", strPtr("creator:100"), TicketState{Creator: 100}},
		{"legacy claimed", strPtr("creator:100 | claimed:200"), TicketState{Creator: 100, Claimant: 200}},
		{"tight spacing", strPtr("100|200"), TicketState{Creator: 100, Claimant: 200}},
		{"negative", strPtr("-5 | -6"), TicketState{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodeMetadata(tc.raw))
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	identity := gen.UInt64Range(1, math.MaxUint64)

	properties.Property("decode(encode(c, m)) == (c, m) for claimed tickets", prop.ForAll(
		func(creator, claimant uint64) bool {
			state := TicketState{Creator: Snowflake(creator), Claimant: Snowflake(claimant)}
			encoded := EncodeMetadata(state)
			return DecodeMetadata(&encoded) == state
		},
		identity, identity,
	))

	properties.Property("decode(encode(c, unclaimed)) == (c, unclaimed)", prop.ForAll(
		func(creator uint64) bool {
			state := TicketState{Creator: Snowflake(creator), Claimant: Unclaimed}
			encoded := EncodeMetadata(state)
			return DecodeMetadata(&encoded) == state
		},
		identity,
	))

	properties.Property("decode is total on arbitrary text", prop.ForAll(
		func(raw string) bool {
			_ = DecodeMetadata(&raw)
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestParseSnowflake(t *testing.T) {
	for _, raw := range []string{"123", " 123 ", "<@123>", "<@!123>", "<@&123>"} {
		id, ok := ParseSnowflake(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, Snowflake(123), id, raw)
	}
	for _, raw := range []string{"", "0", "abc", "<@abc>", "-1"} {
		_, ok := ParseSnowflake(raw)
		assert.False(t, ok, raw)
	}
}

func TestTicketCategoryValid(t *testing.T) {
	assert.True(t, CategoryReport.Valid())
	assert.False(t, TicketCategory("billing").Valid())
}
