package interactions

import (
	"strings"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Command is a parsed prefix command.
type Command struct {
	Name string
	Args []string
}

const (
	cmdMain     = "main"
	cmdIndex    = "index"
	cmdSupport  = "support"
	cmdHelp     = "help"
	cmdClaim    = "claim"
	cmdUnclaim  = "unclaim"
	cmdClose    = "close"
	cmdTransfer = "transfer"
	cmdAdd      = "add"
)

// ParseCommand splits content into a command when it starts with prefix.
// Command names are case-insensitive.
func ParseCommand(content, prefix string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}
	parts := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(parts) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(parts[0]), Args: parts[1:]}, true
}

// ParseUserRef accepts a raw user ID or a user mention (<@id> or <@!id>).
// Role and channel mentions are rejected.
func ParseUserRef(raw string) (domain.Snowflake, bool) {
	if strings.ContainsAny(raw, "&#") {
		return 0, false
	}
	return domain.ParseSnowflake(raw)
}

func helpText(prefix string) string {
	var b strings.Builder
	for _, line := range []struct{ usage, about string }{
		{cmdClaim, "Claims the ticket"},
		{cmdUnclaim, "Releases your claim"},
		{cmdTransfer + " <id/@user>", "Transfers the ticket to another staff member"},
		{cmdAdd + " <id/@user>", "Adds a user to the ticket"},
		{cmdClose, "Closes the ticket"},
		{cmdHelp, "Shows this message"},
	} {
		b.WriteString("**" + prefix + line.usage + "** - " + line.about + "\n")
	}
	return b.String()
}
