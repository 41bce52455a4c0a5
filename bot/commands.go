package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/db"
	"github.com/onnwee/dexkeeper/telemetry"
)

// parseCommand splits a prefixed message into a lower-cased command name and
// its arguments. ok is false when content does not start with prefix.
func parseCommand(content, prefix string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// outcome is the reply to a list command. Prefix and slash commands share it;
// slash commands show failed outcomes to the caller only.
type outcome struct {
	content string
	embed   *discordgo.MessageEmbed
	failed  bool
}

func failure(format string, args ...any) outcome {
	return outcome{content: fmt.Sprintf(format, args...), failed: true}
}

func (b *Bot) dispatch(ctx context.Context, m *discordgo.Message) {
	name, args, ok := parseCommand(m.Content, b.cfg.CommandPrefix)
	if !ok {
		return
	}
	log := telemetry.LoggerWithCorr(ctx)
	log.Debug("command", slog.String("name", name), slog.String("user", m.Author.ID), slog.String("channel_id", m.ChannelID))

	switch name {
	case "id":
		b.startRecording(ctx, m)
	case "help":
		b.reply(ctx, m, helpText(b.cfg.CommandPrefix, b.engine.Config().Timeout, b.releases != nil, b.evolves != nil))
	case "releaseadd", "ra":
		b.withReleases(ctx, m, func() { b.releaseAdd(ctx, m, args) })
	case "releaseremove", "rr":
		b.withReleases(ctx, m, func() { b.releaseRemove(ctx, m, args) })
	case "releaseclear", "rc":
		b.withReleases(ctx, m, func() { b.releaseClear(ctx, m) })
	case "releaselist", "rl":
		b.withReleases(ctx, m, func() { b.releaseList(ctx, m) })
	case "release", "r":
		b.withReleases(ctx, m, func() { b.answer(ctx, m, b.countArg(ctx, m.Author.ID, args, b.release)) })
	case "evolveadd", "ea":
		b.withEvolves(ctx, m, func() { b.evolveAdd(ctx, m, args) })
	case "evolveremove", "er":
		b.withEvolves(ctx, m, func() { b.evolveRemove(ctx, m, args) })
	case "evolveclear", "ec":
		b.withEvolves(ctx, m, func() { b.evolveClear(ctx, m) })
	case "evolvelist", "el":
		b.withEvolves(ctx, m, func() { b.evolveList(ctx, m) })
	case "evolve", "e":
		b.withEvolves(ctx, m, func() { b.answer(ctx, m, b.countArg(ctx, m.Author.ID, args, b.evolve)) })
	}
}

func (b *Bot) withReleases(ctx context.Context, m *discordgo.Message, fn func()) {
	if b.releases == nil {
		b.reply(ctx, m, "❌ Release lists are not available right now.")
		return
	}
	fn()
}

func (b *Bot) withEvolves(ctx context.Context, m *discordgo.Message, fn func()) {
	if b.evolves == nil {
		b.reply(ctx, m, "❌ Evolve lists are not available right now.")
		return
	}
	fn()
}

// answer replies to m with o.
func (b *Bot) answer(ctx context.Context, m *discordgo.Message, o outcome) {
	if o.embed != nil {
		b.reply(ctx, m, o.content, o.embed)
		return
	}
	b.reply(ctx, m, o.content)
}

// countArg parses the count argument of !release and !evolve and runs take with it.
func (b *Bot) countArg(ctx context.Context, userID string, args []string, take func(context.Context, string, int) outcome) outcome {
	if len(args) == 0 {
		return failure("❌ Missing required argument: `count`")
	}
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return failure("❌ Invalid argument provided. Please check your input.")
	}
	return take(ctx, userID, count)
}

func (b *Bot) storeFailed(ctx context.Context, list, op, userID string, err error) outcome {
	telemetry.LoggerWithCorr(ctx).Error("list operation failed",
		slog.String("list", list), slog.String("op", op), slog.String("user", userID), slog.Any("err", err))
	return failure("❌ An error occurred: %v", err)
}

// takeFrom runs a take against one of the lists and renders the result.
func (b *Bot) takeFrom(ctx context.Context, list, userID string, count int,
	take func(context.Context, string, int) ([]string, int, error),
	render func(taken []string, remaining int) *discordgo.MessageEmbed,
) outcome {
	if count <= 0 {
		return failure("❌ Please provide a positive number!")
	}
	taken, remaining, err := take(ctx, userID, count)
	var ie *db.InsufficientError
	switch {
	case errors.Is(err, db.ErrEmptyList):
		return failure("❌ Your %s list is empty! Add IDs using `%s%sadd` first.", list, b.cfg.CommandPrefix, list)
	case errors.As(err, &ie):
		return failure("❌ You only have %d ID(s) available in your %s list!", ie.Available, list)
	case err != nil:
		return b.storeFailed(ctx, list, "take", userID, err)
	}
	return outcome{embed: render(taken, remaining)}
}

func (b *Bot) releaseAdd(ctx context.Context, m *discordgo.Message, ids []string) {
	if len(ids) == 0 {
		b.reply(ctx, m, "❌ Please provide at least one ID!")
		return
	}
	added, total, err := b.releases.Add(ctx, m.Author.ID, ids)
	if err != nil {
		b.answer(ctx, m, b.storeFailed(ctx, "release", "add", m.Author.ID, err))
		return
	}
	if added > 0 {
		b.reply(ctx, m, fmt.Sprintf("✅ Added %d ID(s) to your release list! Total IDs: %d", added, total))
		return
	}
	b.reply(ctx, m, fmt.Sprintf("⚠️ No new IDs added (all were duplicates). Total IDs: %d", total))
}

func (b *Bot) releaseRemove(ctx context.Context, m *discordgo.Message, ids []string) {
	if len(ids) == 0 {
		b.reply(ctx, m, "❌ Please provide at least one ID!")
		return
	}
	removed, remaining, err := b.releases.Remove(ctx, m.Author.ID, ids)
	switch {
	case errors.Is(err, db.ErrEmptyList):
		b.reply(ctx, m, "❌ Your release list is empty!")
	case err != nil:
		b.answer(ctx, m, b.storeFailed(ctx, "release", "remove", m.Author.ID, err))
	case removed > 0:
		b.reply(ctx, m, fmt.Sprintf("✅ Removed %d ID(s) from your release list! Remaining IDs: %d", removed, remaining))
	default:
		b.reply(ctx, m, fmt.Sprintf("⚠️ No IDs were removed (not found in your list). Total IDs: %d", remaining))
	}
}

func (b *Bot) releaseClear(ctx context.Context, m *discordgo.Message) {
	n, err := b.releases.Clear(ctx, m.Author.ID)
	switch {
	case err != nil:
		b.answer(ctx, m, b.storeFailed(ctx, "release", "clear", m.Author.ID, err))
	case n == 0:
		b.reply(ctx, m, "❌ Your release list is already empty!")
	default:
		b.reply(ctx, m, fmt.Sprintf("✅ Cleared all %d ID(s) from your release list!", n))
	}
}

func (b *Bot) releaseList(ctx context.Context, m *discordgo.Message) {
	ids, err := b.releases.List(ctx, m.Author.ID)
	if err != nil {
		b.answer(ctx, m, b.storeFailed(ctx, "release", "list", m.Author.ID, err))
		return
	}
	if len(ids) == 0 {
		b.reply(ctx, m, fmt.Sprintf("❌ Your release list is empty! Add IDs using `%sreleaseadd` first.", b.cfg.CommandPrefix))
		return
	}
	pages := releaseListPages(ids, b.cfg.ReleaseIDsPerPage, b.cfg.EmbedColor)
	if err := b.presenter.sendPages(ctx, m.ChannelID, m.Reference(), pages, nil); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("failed to send release list", slog.Any("err", err))
	}
}

// release takes the first count ids of userID's release list.
func (b *Bot) release(ctx context.Context, userID string, count int) outcome {
	return b.takeFrom(ctx, "release", userID, count, b.releases.Take, func(taken []string, remaining int) *discordgo.MessageEmbed {
		return releaseEmbed(b.cfg.ReleaseTargetBotID, taken, remaining, b.cfg.EmbedColor)
	})
}
