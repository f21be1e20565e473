package interactions

import (
	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const panelColor = 0x5865f2

type panel struct {
	title       string
	description string
	buttons     []discordgo.Button
}

var panels = map[string]panel{
	cmdMain: {
		title: "Middleman Trading Service",
		description: "**Need a trusted middleman for your trade?**\n\n" +
			"• Safe middleman service\n" +
			"• Scam prevention\n" +
			"• Verified staff\n\n" +
			"Click **Request** to open a trade ticket.",
		buttons: []discordgo.Button{
			{Label: "Request", Style: discordgo.PrimaryButton, CustomID: panelCustomID(domain.CategoryTrade)},
		},
	},
	cmdIndex: {
		title: "Indexing Service",
		description: "Open an indexing ticket if you need items indexed.\n\n" +
			"• Payment must be ready\n" +
			"• Follow staff instructions\n" +
			"• Be patient",
		buttons: []discordgo.Button{
			{Label: "Request", Style: discordgo.PrimaryButton, CustomID: panelCustomID(domain.CategoryIndex)},
		},
	},
	cmdSupport: {
		title: "Support / Report",
		description: "Hello welcome to support/report.\n\n" +
			"1. Come with proof\n" +
			"2. Staff has final say\n" +
			"3. Do not be rude\n\n" +
			"Click **Select** below.",
		buttons: []discordgo.Button{
			{Label: "Select", Style: discordgo.PrimaryButton, CustomID: panelSelect},
		},
	},
}

// PanelMessage renders the panel posted by the owner command name.
func PanelMessage(name, imageURL string) (*discordgo.MessageSend, bool) {
	p, ok := panels[name]
	if !ok {
		return nil, false
	}
	embed := &discordgo.MessageEmbed{
		Title:       p.title,
		Description: p.description,
		Color:       panelColor,
	}
	if imageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURL}
	}
	return &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{buttonRow(p.buttons...)},
	}, true
}

// selectorResponse offers the support and report forms.
func selectorResponse() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Choose ticket type:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{buttonRow(
				discordgo.Button{Label: categoryLabel(domain.CategorySupport), Style: discordgo.SuccessButton, CustomID: panelCustomID(domain.CategorySupport)},
				discordgo.Button{Label: categoryLabel(domain.CategoryReport), Style: discordgo.DangerButton, CustomID: panelCustomID(domain.CategoryReport)},
			)},
		},
	}
}

func buttonRow(buttons ...discordgo.Button) discordgo.ActionsRow {
	components := make([]discordgo.MessageComponent, len(buttons))
	for i, b := range buttons {
		components[i] = b
	}
	return discordgo.ActionsRow{Components: components}
}
