package domain

import (
	"strconv"
	"strings"
)

const (
	metadataSeparator = " | "
	unclaimedToken    = "unclaimed"
	unknownToken      = "unknown"

	// prefixes written by older deployments into the same field
	legacyCreatorPrefix = "creator:"
	legacyClaimPrefix   = "claimed:"
)

// EncodeMetadata renders state as "{creator} | {claimant}".
func EncodeMetadata(state TicketState) string {
	creator := unknownToken
	if state.CreatorKnown() {
		creator = state.Creator.String()
	}
	claimant := unclaimedToken
	if state.IsClaimed() {
		claimant = state.Claimant.String()
	}
	return creator + metadataSeparator + claimant
}

// DecodeMetadata parses channel metadata. It never fails: absent or malformed
// input yields an unknown creator and an unclaimed ticket.
func DecodeMetadata(raw *string) TicketState {
	if raw == nil {
		return TicketState{}
	}
	creatorToken, claimantToken, _ := strings.Cut(*raw, "|")
	return TicketState{
		Creator:  parseToken(creatorToken, legacyCreatorPrefix),
		Claimant: parseToken(claimantToken, legacyClaimPrefix),
	}
}

func parseToken(token, legacyPrefix string) Snowflake {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, legacyPrefix)
	if token == "" || token == unclaimedToken || token == unknownToken {
		return 0
	}
	id, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0
	}
	return Snowflake(id)
}
