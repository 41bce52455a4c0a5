package bot

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/telemetry"
)

func countOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "count",
		Description: description,
		Required:    true,
	}
}

// slashCommands lists the application commands for the enabled lists.
func (b *Bot) slashCommands() []*discordgo.ApplicationCommand {
	var cmds []*discordgo.ApplicationCommand
	if b.releases != nil {
		cmds = append(cmds, &discordgo.ApplicationCommand{
			Name:        "release",
			Description: "Release Pokemon IDs from your list",
			Options:     []*discordgo.ApplicationCommandOption{countOption("Number of IDs to release")},
		})
	}
	if b.evolves != nil {
		cmds = append(cmds, &discordgo.ApplicationCommand{
			Name:        "evolve",
			Description: "Evolve Pokemon IDs from your list",
			Options:     []*discordgo.ApplicationCommandOption{countOption("Number of IDs to evolve")},
		})
	}
	return cmds
}

// registerCommands replaces the application's global commands.
func (b *Bot) registerCommands(ctx context.Context, appID string) {
	cmds := b.slashCommands()
	if len(cmds) == 0 {
		return
	}
	log := telemetry.LoggerWithCorr(ctx)
	if _, err := b.api.ApplicationCommandBulkOverwrite(appID, "", cmds, discordgo.WithContext(ctx)); err != nil {
		log.Warn("slash command registration failed", slog.Any("err", err))
		return
	}
	log.Info("slash commands registered", slog.Int("count", len(cmds)))
}

func (b *Bot) handleSlash(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	userID := actorFromInteraction(i).ID
	count, ok := intOption(data.Options, "count")

	var o outcome
	switch {
	case data.Name == "release" && b.releases == nil, data.Name == "evolve" && b.evolves == nil:
		o = failure("❌ This list is not available right now.")
	case !ok:
		o = failure("❌ Missing required argument: `count`")
	case data.Name == "release":
		o = b.release(ctx, userID, count)
	case data.Name == "evolve":
		o = b.evolve(ctx, userID, count)
	default:
		telemetry.LoggerWithCorr(ctx).Debug("unknown slash command", slog.String("name", data.Name))
		return
	}

	resp := &discordgo.InteractionResponseData{Content: o.content}
	if o.embed != nil {
		resp.Embeds = []*discordgo.MessageEmbed{o.embed}
	}
	if o.failed {
		resp.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: resp,
	}, discordgo.WithContext(ctx))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("slash command response failed", slog.String("name", data.Name), slog.Any("err", err))
	}
}

func intOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (int, bool) {
	for _, o := range opts {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionInteger {
			return int(o.IntValue()), true
		}
	}
	return 0, false
}
