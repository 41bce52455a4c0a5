// Package bot is the Discord side of the recorder: it parses prefix commands,
// reads target messages, renders the live status embed and final reports, and
// routes Stop and pagination button presses along with the list commands.
package bot

import (
	"github.com/bwmarrin/discordgo"
)

// API is the subset of the discordgo REST client the bot uses. *discordgo.Session satisfies it.
type API interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

var _ API = (*discordgo.Session)(nil)
