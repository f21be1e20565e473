package interactions

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestFormModal(t *testing.T) {
	resp, ok := FormModal(domain.CategoryTrade)
	require.True(t, ok)
	assert.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	assert.Equal(t, "ticket_form:trade", resp.Data.CustomID)
	assert.Equal(t, "Trade Request", resp.Data.Title)
	require.Len(t, resp.Data.Components, 3)

	description := resp.Data.Components[1].(discordgo.ActionsRow).Components[0].(discordgo.TextInput)
	assert.Equal(t, "description", description.CustomID)
	assert.Equal(t, discordgo.TextInputParagraph, description.Style)
	assert.True(t, description.Required)

	psLink := resp.Data.Components[2].(discordgo.ActionsRow).Components[0].(discordgo.TextInput)
	assert.False(t, psLink.Required)

	_, ok = FormModal("lottery")
	assert.False(t, ok)
}

func TestModalAnswersFlattensRows(t *testing.T) {
	answers := ModalAnswers([]discordgo.MessageComponent{
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: "issue", Value: "lost item"},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{CustomID: "proof", Value: "yes"},
		}},
	})
	assert.Equal(t, map[string]string{"issue": "lost item", "proof": "yes"}, answers)
}

func TestCategoryFrom(t *testing.T) {
	category, ok := categoryFrom("panel:report", panelPrefix)
	assert.True(t, ok)
	assert.Equal(t, domain.CategoryReport, category)

	_, ok = categoryFrom("panel:lottery", panelPrefix)
	assert.False(t, ok)
	_, ok = categoryFrom("ticket_form:trade", panelPrefix)
	assert.False(t, ok)
}

func TestPanelMessage(t *testing.T) {
	msg, ok := PanelMessage(cmdSupport, "https://example.com/banner.gif")
	require.True(t, ok)
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "Support / Report", msg.Embeds[0].Title)
	require.NotNil(t, msg.Embeds[0].Image)
	assert.Equal(t, "https://example.com/banner.gif", msg.Embeds[0].Image.URL)
	button := msg.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	assert.Equal(t, panelSelect, button.CustomID)

	msg, ok = PanelMessage(cmdMain, "")
	require.True(t, ok)
	assert.Nil(t, msg.Embeds[0].Image)
	button = msg.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	assert.Equal(t, "panel:trade", button.CustomID)

	_, ok = PanelMessage("nope", "")
	assert.False(t, ok)
}

func TestSelectorResponseIsEphemeral(t *testing.T) {
	resp := selectorResponse()
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	row := resp.Data.Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 2)
	assert.Equal(t, "Support", row.Components[0].(discordgo.Button).Label)
	assert.Equal(t, "panel:report", row.Components[1].(discordgo.Button).CustomID)
}
