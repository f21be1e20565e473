package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const notAnswered = "N/A"

// Question is one input on a ticket request form.
type Question struct {
	Key       string
	Label     string
	Paragraph bool
	Required  bool
	MaxLength int
}

// Form is the request form shown for a category.
type Form struct {
	Category  TicketCategory
	Title     string
	Questions []Question
}

var forms = map[TicketCategory]Form{
	CategoryTrade: {
		Category: CategoryTrade,
		Title:    "Trade Request",
		Questions: []Question{
			{Key: "other_user", Label: "User / ID of other person", Required: true, MaxLength: 100},
			{Key: "description", Label: "Description", Paragraph: true, Required: true},
			{Key: "ps_link", Label: "Can both join PS link?"},
		},
	},
	CategoryIndex: {
		Category: CategoryIndex,
		Title:    "Index Request",
		Questions: []Question{
			{Key: "item", Label: "What would you like to index?", Required: true},
			{Key: "holding", Label: "What are you letting us hold?", Required: true},
			{Key: "obey", Label: "Will you obey staff commands?", Required: true},
		},
	},
	CategorySupport: {
		Category: CategorySupport,
		Title:    "Support",
		Questions: []Question{
			{Key: "issue", Label: "What do you need help with?", Required: true},
			{Key: "proof", Label: "Do you have any proofs?", Required: true},
			{Key: "patience", Label: "Will you wait patiently?", Required: true},
		},
	},
	CategoryReport: {
		Category: CategoryReport,
		Title:    "Report",
		Questions: []Question{
			{Key: "reported_user", Label: "Who are you reporting?", Required: true},
			{Key: "reason", Label: "What did they do?", Paragraph: true, Required: true},
			{Key: "proof", Label: "Do you have any proofs?", Required: true},
		},
	},
}

// FormFor returns the request form of category.
func FormFor(category TicketCategory) (Form, bool) {
	form, ok := forms[category]
	return form, ok
}

// Collect turns answers keyed by question key into ordered summary fields.
// Unanswered optional questions render as N/A.
func (f Form) Collect(answers map[string]string) ([]Field, error) {
	fields := make([]Field, 0, len(f.Questions))
	var missing []string
	for _, q := range f.Questions {
		value := strings.TrimSpace(answers[q.Key])
		if value == "" {
			if q.Required {
				missing = append(missing, q.Key)
				continue
			}
			value = notAnswered
		}
		if q.MaxLength > 0 && len([]rune(value)) > q.MaxLength {
			return nil, fmt.Errorf("answer to %q exceeds %d characters", q.Label, q.MaxLength)
		}
		fields = append(fields, Field{Label: q.Label, Value: value})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing answers: %s", strings.Join(missing, ", "))
	}
	return fields, nil
}

// SummaryTitle is the heading of a ticket's opening summary, e.g. "Trade Ticket".
func (c TicketCategory) SummaryTitle() string {
	return cases.Title(language.English).String(string(c)) + " Ticket"
}

// ChannelName derives a ticket channel name from category and requester:
// lower-case, restricted to letters, digits and dashes.
func ChannelName(category TicketCategory, requesterName string, requesterID Snowflake) string {
	var b strings.Builder
	for _, r := range cases.Lower(language.Und).String(requesterName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = requesterID.String()
	}
	full := string(category) + "-" + name
	if len(full) > 100 {
		full = full[:100]
	}
	return full
}
