package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/onnwee/dexkeeper/config"
	"github.com/onnwee/dexkeeper/db"
	"github.com/onnwee/dexkeeper/recorder"
	"github.com/onnwee/dexkeeper/telemetry"
)

// ReleaseStore is the persistence used by the release list commands.
type ReleaseStore interface {
	Add(ctx context.Context, userID string, ids []string) (added, total int, err error)
	Remove(ctx context.Context, userID string, ids []string) (removed, remaining int, err error)
	Clear(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string) ([]string, error)
	Take(ctx context.Context, userID string, n int) (taken []string, remaining int, err error)
}

// EvolveStore is the persistence used by the evolve list commands. Every id
// carries a use count of 1 or 2.
type EvolveStore interface {
	Add(ctx context.Context, userID string, ids []string, uses int) (added, total int, err error)
	Remove(ctx context.Context, userID string, ids []string, once bool) (removed, remaining int, err error)
	Clear(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string) ([]db.EvolveEntry, error)
	Take(ctx context.Context, userID string, n int) (taken []string, remaining int, err error)
}

// Lists holds the per-user id list stores. A nil store disables its commands.
type Lists struct {
	Releases ReleaseStore
	Evolves  EvolveStore
}

// Bot routes gateway events to the recorder engine and the id lists.
type Bot struct {
	cfg       *config.Config
	api       API
	engine    *recorder.Engine
	pager     *Pager
	presenter *Presenter
	releases  ReleaseStore // nil when no database is configured
	evolves   EvolveStore
	log       *slog.Logger

	base      context.Context
	connected atomic.Bool
}

// New wires a bot. Stores left nil in lists disable their commands.
func New(cfg *config.Config, api API, engine *recorder.Engine, pager *Pager, lists Lists) *Bot {
	return &Bot{
		cfg:       cfg,
		api:       api,
		engine:    engine,
		pager:     pager,
		presenter: NewPresenter(api, pager, cfg.EmbedColor),
		releases:  lists.Releases,
		evolves:   lists.Evolves,
		log:       slog.Default().With(slog.String("component", "bot")),
		base:      context.Background(),
	}
}

// Register attaches the bot's handlers to a gateway session. ctx bounds the
// work started from events.
func (b *Bot) Register(ctx context.Context, s *discordgo.Session) {
	b.base = ctx
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.setConnected(true)
		b.log.Info("gateway ready", slog.String("user", r.User.Username), slog.Int("guilds", len(r.Guilds)))
		b.registerCommands(b.eventContext(), r.User.ID)
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) { b.setConnected(true) })
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		b.setConnected(false)
		b.log.Warn("gateway disconnected")
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.HandleMessage(b.eventContext(), m.Message)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		b.HandleMessageEdit(b.eventContext(), m.Message)
	})
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.HandleInteraction(b.eventContext(), i.Interaction)
	})
}

// Connected reports whether the gateway session is currently up.
func (b *Bot) Connected() bool { return b.connected.Load() }

func (b *Bot) setConnected(up bool) {
	b.connected.Store(up)
	telemetry.SetGatewayUp(up)
}

func (b *Bot) eventContext() context.Context {
	return telemetry.WithCorrelation(b.base, uuid.NewString())
}

// HandleMessage dispatches prefix commands from new messages.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	b.dispatch(ctx, m)
}

// HandleMessageEdit feeds edits to active recordings and re-dispatches
// commands from edited user messages.
func (b *Bot) HandleMessageEdit(ctx context.Context, m *discordgo.Message) {
	if m == nil {
		return
	}
	if len(m.Embeds) > 0 {
		b.engine.HandleEdit(ctx, DocumentFromMessage(m))
	}
	if m.Author != nil && !m.Author.Bot {
		b.dispatch(ctx, m)
	}
}

// HandleInteraction handles slash commands plus Stop, pagination and tab button presses.
func (b *Bot) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil {
		return
	}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(ctx, i)
		return
	case discordgo.InteractionMessageComponent:
	default:
		return
	}
	customID := i.MessageComponentData().CustomID
	switch {
	case strings.HasPrefix(customID, stopPrefix):
		b.handleStop(ctx, i, strings.TrimPrefix(customID, stopPrefix))
	case customID == prevPageID:
		b.handleTurn(ctx, i, -1)
	case customID == nextPageID:
		b.handleTurn(ctx, i, 1)
	case customID == tabOnceID, customID == tabTwiceID:
		b.handleTab(ctx, i, customID)
	}
}

func (b *Bot) handleStop(ctx context.Context, i *discordgo.Interaction, messageID string) {
	b.deferUpdate(ctx, i)
	by := actorFromInteraction(i)
	err := b.engine.Stop(ctx, messageID, by)
	if errors.Is(err, recorder.ErrNoSession) {
		telemetry.LoggerWithCorr(ctx).Debug("stop pressed for finished recording",
			slog.String("message_id", messageID), slog.String("user", by.ID))
	}
}

func (b *Bot) handleTurn(ctx context.Context, i *discordgo.Interaction, delta int) {
	if i.Message == nil {
		b.deferUpdate(ctx, i)
		return
	}
	page, _, ok := b.pager.Turn(i.Message.ID, delta)
	if !ok {
		b.deferUpdate(ctx, i)
		return
	}
	b.showPage(ctx, i, page)
}

func (b *Bot) handleTab(ctx context.Context, i *discordgo.Interaction, tab string) {
	if i.Message == nil {
		b.deferUpdate(ctx, i)
		return
	}
	page, ok := b.pager.Jump(i.Message.ID, tab)
	if !ok {
		b.deferUpdate(ctx, i)
		return
	}
	b.showPage(ctx, i, page)
}

// showPage replaces the pressed message with page.
func (b *Bot) showPage(ctx context.Context, i *discordgo.Interaction, page Page) {
	data := &discordgo.InteractionResponseData{
		Content:    page.Content,
		Components: page.Components,
	}
	if data.Components == nil {
		data.Components = pageComponents()
	}
	if page.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{page.Embed}
	}
	err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Debug("page turn failed", slog.Any("err", err))
	}
}

func (b *Bot) deferUpdate(ctx context.Context, i *discordgo.Interaction) {
	err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Debug("interaction ack failed", slog.Any("err", err))
	}
}

// say sends a plain message to the channel.
func (b *Bot) say(ctx context.Context, channelID, content string) {
	_, err := b.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content}, discordgo.WithContext(ctx))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("failed to send message", slog.String("channel_id", channelID), slog.Any("err", err))
	}
}

// reply answers m without pinging its author.
func (b *Bot) reply(ctx context.Context, m *discordgo.Message, content string, embeds ...*discordgo.MessageEmbed) {
	_, err := b.api.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:         content,
		Embeds:          embeds,
		Reference:       m.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{RepliedUser: false},
	}, discordgo.WithContext(ctx))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("failed to reply", slog.String("channel_id", m.ChannelID), slog.Any("err", err))
	}
}

func actorFromInteraction(i *discordgo.Interaction) recorder.Actor {
	if i.Member != nil && i.Member.User != nil {
		return actor(i.Member.User)
	}
	return actor(i.User)
}

// actor uses the account name for attribution in reports.
func actor(u *discordgo.User) recorder.Actor {
	if u == nil {
		return recorder.Actor{}
	}
	return recorder.Actor{ID: u.ID, Name: u.Username, Mention: u.Mention()}
}

func (b *Bot) startRecording(ctx context.Context, m *discordgo.Message) {
	if m.MessageReference == nil || m.MessageReference.MessageID == "" {
		b.say(ctx, m.ChannelID, "❌ Please reply to a message with Pokemon embeds to start recording IDs!")
		return
	}
	target := recorder.DocumentRef{
		GuildID:   m.GuildID,
		ChannelID: m.MessageReference.ChannelID,
		MessageID: m.MessageReference.MessageID,
	}
	if target.ChannelID == "" {
		target.ChannelID = m.ChannelID
	}

	_, err := b.engine.Start(ctx, target, actor(m.Author))
	if err == nil {
		return
	}
	var ue *recorder.UnavailableError
	switch {
	case errors.Is(err, recorder.ErrDuplicateSession):
		b.say(ctx, m.ChannelID, "⚠️ Already recording IDs from this message!")
	case errors.Is(err, recorder.ErrNoContent):
		b.say(ctx, m.ChannelID, "❌ The replied message doesn't have any embeds!")
	case errors.As(err, &ue) && ue.Reason == recorder.ReasonNotFound:
		b.say(ctx, m.ChannelID, "❌ Could not find the replied message!")
	case errors.As(err, &ue) && ue.Reason == recorder.ReasonForbidden:
		b.say(ctx, m.ChannelID, "❌ I don't have permission to read that message!")
	default:
		telemetry.LoggerWithCorr(ctx).Error("start recording failed", slog.String("target", target.MessageID), slog.Any("err", err))
		b.reply(ctx, m, fmt.Sprintf("❌ An error occurred: %v", err))
	}
}
