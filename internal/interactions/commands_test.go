package interactions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Command
		ok      bool
	}{
		{name: "bare", content: "$claim", want: Command{Name: "claim", Args: []string{}}, ok: true},
		{name: "args", content: "$transfer <@602>  now", want: Command{Name: "transfer", Args: []string{"<@602>", "now"}}, ok: true},
		{name: "case folded", content: "$CLOSE", want: Command{Name: "close", Args: []string{}}, ok: true},
		{name: "no prefix", content: "claim", ok: false},
		{name: "prefix only", content: "$   ", ok: false},
		{name: "other prefix", content: ".claim", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.content, "$")
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseUserRef(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Snowflake
		ok   bool
	}{
		{raw: "602", want: 602, ok: true},
		{raw: "<@602>", want: 602, ok: true},
		{raw: "<@!602>", want: 602, ok: true},
		{raw: "<@&10>", ok: false},
		{raw: "<#300>", ok: false},
		{raw: "bob", ok: false},
		{raw: "0", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseUserRef(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHelpTextUsesPrefix(t *testing.T) {
	text := helpText("$")
	assert.Contains(t, text, "**$claim**")
	assert.Contains(t, text, "**$transfer <id/@user>**")
}
