package interactions

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const (
	formPrefix  = "ticket_form:"
	panelPrefix = "panel:"
	panelSelect = panelPrefix + "select"
)

func formCustomID(category domain.TicketCategory) string {
	return formPrefix + string(category)
}

func panelCustomID(category domain.TicketCategory) string {
	return panelPrefix + string(category)
}

// categoryFrom extracts a known category from a custom ID carrying prefix.
func categoryFrom(customID, prefix string) (domain.TicketCategory, bool) {
	if !strings.HasPrefix(customID, prefix) {
		return "", false
	}
	category := domain.TicketCategory(strings.TrimPrefix(customID, prefix))
	return category, category.Valid()
}

// FormModal builds the request modal for category.
func FormModal(category domain.TicketCategory) (*discordgo.InteractionResponse, bool) {
	form, ok := domain.FormFor(category)
	if !ok {
		return nil, false
	}
	rows := make([]discordgo.MessageComponent, 0, len(form.Questions))
	for _, q := range form.Questions {
		style := discordgo.TextInputShort
		if q.Paragraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  q.Key,
				Label:     q.Label,
				Style:     style,
				Required:  q.Required,
				MaxLength: q.MaxLength,
			},
		}})
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   formCustomID(category),
			Title:      form.Title,
			Components: rows,
		},
	}, true
}

// ModalAnswers flattens submitted text inputs into answers keyed by question.
func ModalAnswers(components []discordgo.MessageComponent) map[string]string {
	answers := make(map[string]string)
	var walk func([]discordgo.MessageComponent)
	walk = func(components []discordgo.MessageComponent) {
		for _, component := range components {
			switch c := component.(type) {
			case *discordgo.ActionsRow:
				walk(c.Components)
			case discordgo.ActionsRow:
				walk(c.Components)
			case *discordgo.TextInput:
				answers[c.CustomID] = c.Value
			case discordgo.TextInput:
				answers[c.CustomID] = c.Value
			}
		}
	}
	walk(components)
	return answers
}

func categoryLabel(category domain.TicketCategory) string {
	return cases.Title(language.English).String(string(category))
}
