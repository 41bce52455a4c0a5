package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/clock"
	"github.com/onnwee/dexkeeper/config"
	"github.com/onnwee/dexkeeper/db"
	"github.com/onnwee/dexkeeper/recorder"
	"github.com/onnwee/dexkeeper/testutil"
)

var (
	alice   = &discordgo.User{ID: "u1", Username: "alice"}
	bob     = &discordgo.User{ID: "u2", Username: "bob"}
	poketwo = &discordgo.User{ID: "716390085896962058", Username: "Pokétwo", Bot: true}
)

type harness struct {
	api    *testutil.FakeDiscord
	bot    *Bot
	engine *recorder.Engine
	clock  *clock.Fake
}

func newHarness(t *testing.T, lists Lists) *harness {
	t.Helper()
	cfg := &config.Config{
		CommandPrefix:      "!",
		EmbedColor:         config.DefaultEmbedColor,
		ReleaseIDsPerPage:  config.DefaultReleaseIDsPerPage,
		EvolveIDsPerPage:   config.DefaultEvolveIDsPerPage,
		ReleaseTargetBotID: config.DefaultReleaseTargetBotID,
	}
	api := testutil.NewFakeDiscord()
	pager := NewPager(time.Minute)
	t.Cleanup(pager.Stop)
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := recorder.NewEngine(
		recorder.Config{Timeout: 120 * time.Second, CheckInterval: 30 * time.Second, PageSize: 200},
		recorder.NewRegistry(), NewSource(api), NewPresenter(api, pager, cfg.EmbedColor), recorder.WithClock(clk))
	t.Cleanup(engine.Close)
	return &harness{api: api, bot: New(cfg, api, engine, pager, lists), engine: engine, clock: clk}
}

func catchMessage(id string, descriptions ...string) *discordgo.Message {
	m := &discordgo.Message{ID: id, ChannelID: "c1", GuildID: "g1", Author: poketwo}
	for _, d := range descriptions {
		m.Embeds = append(m.Embeds, &discordgo.MessageEmbed{Description: d})
	}
	return m
}

func command(author *discordgo.User, content, replyTo string) *discordgo.Message {
	m := &discordgo.Message{ID: "cmd-" + content, ChannelID: "c1", GuildID: "g1", Author: author, Content: content}
	if replyTo != "" {
		m.MessageReference = &discordgo.MessageReference{MessageID: replyTo, ChannelID: "c1", GuildID: "g1"}
	}
	return m
}

func pressButton(user *discordgo.User, messageID, customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "int-" + customID,
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "c1",
		GuildID:   "g1",
		Member:    &discordgo.Member{User: user},
		Message:   &discordgo.Message{ID: messageID, ChannelID: "c1"},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID, ComponentType: discordgo.ButtonComponent},
	}
}

func TestRecordingLifecycle(t *testing.T) {
	h := newHarness(t, Lists{})
	ctx := context.Background()
	h.api.Put(catchMessage("target", "Caught `398121` and **`12`**"))

	h.bot.HandleMessage(ctx, command(alice, "!ID", "target"))

	control := h.api.LastSent(t)
	if len(control.Data.Embeds) != 1 || !strings.Contains(control.Data.Embeds[0].Description, "https://discord.com/channels/g1/c1/target") {
		t.Fatalf("control message = %+v", control.Data)
	}
	s, ok := h.engine.Registry().Get("target")
	if !ok || s.Count() != 2 {
		t.Fatalf("session not registered with 2 ids")
	}

	h.bot.HandleMessageEdit(ctx, catchMessage("target", "Caught `398121` and **`12`**", "`7`"))
	if s.Count() != 3 {
		t.Fatalf("count after edit = %d, want 3", s.Count())
	}

	h.bot.HandleInteraction(ctx, pressButton(bob, control.ID, "stop_recording:target"))

	resp := h.api.Responses()
	if len(resp) != 1 || resp[0].Type != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Fatalf("interaction responses = %+v", resp)
	}
	report := h.api.LastSent(t)
	want := "Total IDs: 3 • Stopped by bob\n```\n398121 12 7\n```"
	if report.Data.Content != want {
		t.Fatalf("report = %q, want %q", report.Data.Content, want)
	}
	if h.engine.Registry().Len() != 0 {
		t.Fatal("session still registered after stop")
	}

	var disabled bool
	for _, e := range h.api.Edits() {
		if e.ID == control.ID && e.Components != nil {
			btn := (*e.Components)[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
			disabled = btn.Disabled
		}
	}
	if !disabled {
		t.Fatal("stop button was not disabled")
	}

	// A second press on the stale button publishes nothing.
	before := len(h.api.Sent())
	h.bot.HandleInteraction(ctx, pressButton(alice, control.ID, "stop_recording:target"))
	if len(h.api.Sent()) != before {
		t.Fatal("second stop published another report")
	}
}

func TestRecordingTimeout(t *testing.T) {
	h := newHarness(t, Lists{})
	h.api.Put(catchMessage("target", "`5` `40`"))
	h.bot.HandleMessage(context.Background(), command(alice, "!id", "target"))
	h.clock.WaitForTickers(1)

	h.clock.Advance(120 * time.Second)
	sent := h.api.WaitSent(t, 2)
	if got := sent[1].Data.Content; got != "Total IDs: 2\n```\n40 5\n```" {
		t.Fatalf("timeout report = %q", got)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		var found bool
		for _, e := range h.api.Edits() {
			if e.Embeds != nil && (*e.Embeds)[0].Title == "⏹️ Recording Stopped (Timeout)" {
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("control message never showed the timeout notice")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		replyTo string
		want    string
	}{
		{"not a reply", func(*harness) {}, "", "Please reply to a message"},
		{"missing message", func(*harness) {}, "gone", "Could not find the replied message"},
		{"forbidden", func(h *harness) {
			h.api.FetchErr = testutil.RESTError(http.StatusForbidden, 50001, "Missing Access")
		}, "target", "don't have permission"},
		{"no embeds", func(h *harness) { h.api.Put(catchMessage("target")) }, "target", "doesn't have any embeds"},
		{"duplicate", func(h *harness) {
			h.api.Put(catchMessage("target", "`1`"))
			h.bot.HandleMessage(context.Background(), command(bob, "!id", "target"))
		}, "target", "Already recording"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Lists{})
			tt.setup(h)
			h.bot.HandleMessage(context.Background(), command(alice, "!id", tt.replyTo))
			if got := h.api.LastSent(t).Data.Content; !strings.Contains(got, tt.want) {
				t.Fatalf("reply = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestIgnoresBotsAndOtherText(t *testing.T) {
	h := newHarness(t, Lists{})
	h.api.Put(catchMessage("target", "`1`"))
	h.bot.HandleMessage(context.Background(), command(poketwo, "!id", "target"))
	h.bot.HandleMessage(context.Background(), command(alice, "hello there", ""))
	h.bot.HandleMessage(context.Background(), command(alice, "!unknown", ""))
	if n := len(h.api.Sent()); n != 0 {
		t.Fatalf("sent %d messages, want 0", n)
	}
}

func TestCommandFromEditedMessage(t *testing.T) {
	h := newHarness(t, Lists{})
	h.api.Put(catchMessage("target", "`1`"))
	h.bot.HandleMessageEdit(context.Background(), command(alice, "!id", "target"))
	if h.engine.Registry().Len() != 1 {
		t.Fatal("edited command did not start a recording")
	}
}

func TestHelpMentionsTimeout(t *testing.T) {
	h := newHarness(t, Lists{})
	h.bot.HandleMessage(context.Background(), command(alice, "!help", ""))
	got := h.api.LastSent(t).Data.Content
	if !strings.Contains(got, "2 minutes") || strings.Contains(got, "releaseadd") || strings.Contains(got, "evolveadd") {
		t.Fatalf("help = %q", got)
	}
}

type fakeStore struct {
	mu  sync.Mutex
	ids map[string][]string
}

func newFakeStore() *fakeStore { return &fakeStore{ids: make(map[string][]string)} }

func (f *fakeStore) Add(_ context.Context, user string, ids []string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := 0
	for _, id := range ids {
		if !contains(f.ids[user], id) {
			f.ids[user] = append(f.ids[user], id)
			added++
		}
	}
	return added, len(f.ids[user]), nil
}

func (f *fakeStore) Remove(_ context.Context, user string, ids []string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids[user]) == 0 {
		return 0, 0, db.ErrEmptyList
	}
	var kept []string
	for _, id := range f.ids[user] {
		if !contains(ids, id) {
			kept = append(kept, id)
		}
	}
	removed := len(f.ids[user]) - len(kept)
	f.ids[user] = kept
	return removed, len(kept), nil
}

func (f *fakeStore) Clear(_ context.Context, user string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.ids[user])
	delete(f.ids, user)
	return n, nil
}

func (f *fakeStore) List(_ context.Context, user string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids[user]...), nil
}

func (f *fakeStore) Take(_ context.Context, user string, n int) ([]string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.ids[user]
	if len(list) == 0 {
		return nil, 0, db.ErrEmptyList
	}
	if n > len(list) {
		return nil, 0, &db.InsufficientError{Requested: n, Available: len(list)}
	}
	taken := append([]string(nil), list[:n]...)
	f.ids[user] = list[n:]
	return taken, len(f.ids[user]), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestReleaseCommands(t *testing.T) {
	h := newHarness(t, Lists{Releases: newFakeStore()})
	ctx := context.Background()
	say := func(content string) sentView {
		h.bot.HandleMessage(ctx, command(alice, content, ""))
		last := h.api.LastSent(t)
		return sentView{Content: last.Data.Content, Embeds: last.Data.Embeds}
	}

	steps := []struct {
		cmd  string
		want string
	}{
		{"!release 1", "Your release list is empty! Add IDs using `!releaseadd` first."},
		{"!rr 1", "Your release list is empty!"},
		{"!rc", "already empty"},
		{"!ra", "Please provide at least one ID"},
		{"!ra 10 20 30 10", "Added 3 ID(s) to your release list! Total IDs: 3"},
		{"!RA 10", "No new IDs added (all were duplicates). Total IDs: 3"},
		{"!rr 20 99", "Removed 1 ID(s) from your release list! Remaining IDs: 2"},
		{"!rr 99", "No IDs were removed (not found in your list). Total IDs: 2"},
		{"!r", "Missing required argument: `count`"},
		{"!r seven", "Invalid argument provided"},
		{"!r 0", "Please provide a positive number"},
		{"!r 5", "You only have 2 ID(s) available"},
	}
	for _, s := range steps {
		if got := say(s.cmd); !strings.Contains(got.Content, s.want) {
			t.Fatalf("%s: reply = %q, want %q", s.cmd, got.Content, s.want)
		}
	}

	got := say("!rl")
	if len(got.Embeds) != 1 || got.Embeds[0].Description != "```\n10 30\n```" {
		t.Fatalf("release list = %+v", got.Embeds)
	}

	got = say("!r 1")
	if len(got.Embeds) != 1 || got.Embeds[0].Description != "```\n<@716390085896962058> r 10\n```" {
		t.Fatalf("release embed = %+v", got.Embeds)
	}
	if got.Embeds[0].Footer.Text != "1 ID(s) removed from your release list • 1 remaining" {
		t.Fatalf("release footer = %q", got.Embeds[0].Footer.Text)
	}

	if got := say("!releaseclear"); !strings.Contains(got.Content, "Cleared all 1 ID(s)") {
		t.Fatalf("clear reply = %q", got.Content)
	}
}

// sentView is the user-visible part of a sent message.
type sentView struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
}

func TestReleaseListPagination(t *testing.T) {
	store := newFakeStore()
	h := newHarness(t, Lists{Releases: store})
	ctx := context.Background()

	ids := make([]string, 320)
	for i := range ids {
		ids[i] = fmt.Sprint(1000 + i)
	}
	store.Add(ctx, alice.ID, ids)

	h.bot.HandleMessage(ctx, command(alice, "!releaselist", ""))
	list := h.api.LastSent(t)
	if list.Data.Components == nil || list.Data.Embeds[0].Footer.Text != "Total: 320 ID(s) • Page 1/3" {
		t.Fatalf("first page = %+v", list.Data.Embeds[0].Footer)
	}

	h.bot.HandleInteraction(ctx, pressButton(bob, list.ID, "page_next"))
	h.bot.HandleInteraction(ctx, pressButton(bob, list.ID, "page_next"))
	h.bot.HandleInteraction(ctx, pressButton(bob, list.ID, "page_next"))

	resp := h.api.Responses()
	if len(resp) != 3 {
		t.Fatalf("got %d responses, want 3", len(resp))
	}
	if resp[1].Type != discordgo.InteractionResponseUpdateMessage || resp[1].Data.Embeds[0].Footer.Text != "Total: 320 ID(s) • Page 3/3" {
		t.Fatalf("second turn = %+v", resp[1])
	}
	if resp[2].Type != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Fatalf("turn past the end should only acknowledge, got %v", resp[2].Type)
	}
}

func TestReleasesDisabledWithoutStore(t *testing.T) {
	h := newHarness(t, Lists{})
	h.bot.HandleMessage(context.Background(), command(alice, "!ra 1", ""))
	if got := h.api.LastSent(t).Data.Content; !strings.Contains(got, "not available") {
		t.Fatalf("reply = %q", got)
	}
}
