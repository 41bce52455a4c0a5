package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/db"
	"github.com/onnwee/dexkeeper/telemetry"
)

const onceFlag = "--once"

// splitOnce drops every --once flag from args and reports whether one was present.
func splitOnce(args []string) (ids []string, once bool) {
	for _, a := range args {
		if a == onceFlag {
			once = true
			continue
		}
		ids = append(ids, a)
	}
	return ids, once
}

func (b *Bot) evolveAdd(ctx context.Context, m *discordgo.Message, args []string) {
	ids, once := splitOnce(args)
	if len(ids) == 0 {
		b.reply(ctx, m, "❌ Please provide at least one ID!")
		return
	}
	uses, useText := db.MaxEvolveUses, "2 uses"
	if once {
		uses, useText = 1, "1 use"
	}
	added, total, err := b.evolves.Add(ctx, m.Author.ID, ids, uses)
	switch {
	case err != nil:
		b.answer(ctx, m, b.storeFailed(ctx, "evolve", "add", m.Author.ID, err))
	case added > 0:
		b.reply(ctx, m, fmt.Sprintf("✅ Added %d ID(s) with %s to your evolve list! Total IDs: %d", added, useText, total))
	default:
		b.reply(ctx, m, fmt.Sprintf("⚠️ No new IDs added (all were duplicates). Total IDs: %d", total))
	}
}

func (b *Bot) evolveRemove(ctx context.Context, m *discordgo.Message, args []string) {
	ids, once := splitOnce(args)
	if len(ids) == 0 {
		b.reply(ctx, m, "❌ Please provide at least one ID!")
		return
	}
	removed, remaining, err := b.evolves.Remove(ctx, m.Author.ID, ids, once)
	action := "ID(s) removed from"
	if once {
		action = "use(s) removed from"
	}
	switch {
	case errors.Is(err, db.ErrEmptyList):
		b.reply(ctx, m, "❌ Your evolve list is empty!")
	case err != nil:
		b.answer(ctx, m, b.storeFailed(ctx, "evolve", "remove", m.Author.ID, err))
	case removed > 0:
		b.reply(ctx, m, fmt.Sprintf("✅ %d %s your evolve list! Remaining IDs: %d", removed, action, remaining))
	default:
		b.reply(ctx, m, fmt.Sprintf("⚠️ No IDs were removed (not found in your list). Total IDs: %d", remaining))
	}
}

func (b *Bot) evolveClear(ctx context.Context, m *discordgo.Message) {
	n, err := b.evolves.Clear(ctx, m.Author.ID)
	switch {
	case err != nil:
		b.answer(ctx, m, b.storeFailed(ctx, "evolve", "clear", m.Author.ID, err))
	case n == 0:
		b.reply(ctx, m, "❌ Your evolve list is already empty!")
	default:
		b.reply(ctx, m, fmt.Sprintf("✅ Cleared all %d ID(s) from your evolve list!", n))
	}
}

func (b *Bot) evolveList(ctx context.Context, m *discordgo.Message) {
	entries, err := b.evolves.List(ctx, m.Author.ID)
	if err != nil {
		b.answer(ctx, m, b.storeFailed(ctx, "evolve", "list", m.Author.ID, err))
		return
	}
	if len(entries) == 0 {
		b.reply(ctx, m, fmt.Sprintf("❌ Your evolve list is empty! Add IDs using `%sevolveadd` first.", b.cfg.CommandPrefix))
		return
	}
	pages, tabs := evolveListPages(entries, b.cfg.EvolveIDsPerPage, b.cfg.EmbedColor)
	if err := b.presenter.sendPages(ctx, m.ChannelID, m.Reference(), pages, tabs); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("failed to send evolve list", slog.Any("err", err))
	}
}

// evolve spends one use of count ids from userID's evolve list, ids with the
// most uses first.
func (b *Bot) evolve(ctx context.Context, userID string, count int) outcome {
	return b.takeFrom(ctx, "evolve", userID, count, b.evolves.Take, func(taken []string, remaining int) *discordgo.MessageEmbed {
		return evolveEmbed(b.cfg.ReleaseTargetBotID, taken, remaining, b.cfg.EmbedColor)
	})
}
