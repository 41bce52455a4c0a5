package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/db"
	"github.com/onnwee/dexkeeper/recorder"
)

const (
	stopPrefix = "stop_recording:"
	prevPageID = "page_prev"
	nextPageID = "page_next"
	tabOnceID  = "tab_once"
	tabTwiceID = "tab_twice"

	noIDsText = "No Pokemon IDs were found!"
)

// JumpURL links to a message in the Discord client.
func JumpURL(ref recorder.DocumentRef) string {
	guild := ref.GuildID
	if guild == "" {
		guild = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guild, ref.ChannelID, ref.MessageID)
}

// humanWait renders a wait the way users read it: whole minutes when at
// least one minute, otherwise seconds.
func humanWait(d time.Duration) string {
	if d >= time.Minute {
		return plural(int(d/time.Minute), "minute")
	}
	return plural(int(d/time.Second), "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// statusEmbed renders the live recording embed. live switches the footer line
// from the configured timeout to the time remaining.
func statusEmbed(st recorder.Status, color int, live bool) *discordgo.MessageEmbed {
	wait := fmt.Sprintf("⏱️ Auto-stops after %s of inactivity.", humanWait(st.Timeout))
	if live {
		wait = fmt.Sprintf("⏱️ Auto-stops in ~%s if no new IDs.", humanWait(st.Remaining()))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recording IDs from [this message](%s)\n\n", JumpURL(st.Target))
	fmt.Fprintf(&b, "**IDs found:** %d\n", st.Count)
	fmt.Fprintf(&b, "**Started by:** %s\n\n", st.Owner.Mention)
	b.WriteString("The message will be monitored for edits.\n")
	b.WriteString("Click the button below when you're done!\n\n")
	b.WriteString(wait)
	return &discordgo.MessageEmbed{
		Title:       "🔴 Recording Pokemon IDs",
		Description: b.String(),
		Color:       color,
	}
}

func timeoutEmbed(st recorder.Status, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⏹️ Recording Stopped (Timeout)",
		Description: fmt.Sprintf("Recording automatically stopped due to inactivity.\n\n**IDs found:** %d", st.Count),
		Color:       color,
	}
}

func stopComponents(target recorder.DocumentRef, disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Stop Recording",
				Style:    discordgo.DangerButton,
				CustomID: stopPrefix + target.MessageID,
				Disabled: disabled,
			},
		}},
	}
}

func pageComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "◀", Style: discordgo.PrimaryButton, CustomID: prevPageID},
			discordgo.Button{Label: "▶", Style: discordgo.PrimaryButton, CustomID: nextPageID},
		}},
	}
}

func codeBlock(s string) string { return "```\n" + s + "\n```" }

// reportPages renders a final report as plain-content pages. An empty report
// yields a single page with the "no ids" notice.
func reportPages(r recorder.Report) []Page {
	if r.Empty() {
		return []Page{{Content: noIDsText}}
	}
	header := fmt.Sprintf("Total IDs: %d", r.Total())
	if r.StoppedBy != nil {
		header += " • Stopped by " + r.StoppedBy.Name
	}
	pages := make([]Page, len(r.Pages))
	for i := range r.Pages {
		h := header
		if r.Paginated() {
			h += fmt.Sprintf(" • Page %d/%d", i+1, len(r.Pages))
		}
		pages[i] = Page{Content: h + "\n" + codeBlock(r.PageText(i))}
	}
	return pages
}

// releaseListPages renders a user's release list as embed pages of perPage ids.
func releaseListPages(ids []string, perPage, color int) []Page {
	chunks := chunk(ids, perPage)
	pages := make([]Page, len(chunks))
	for i, c := range chunks {
		footer := fmt.Sprintf("Total: %d ID(s)", len(ids))
		if len(chunks) > 1 {
			footer += fmt.Sprintf(" • Page %d/%d", i+1, len(chunks))
		}
		pages[i] = Page{Embed: &discordgo.MessageEmbed{
			Title:       "📋 Your Release List",
			Description: codeBlock(strings.Join(c, " ")),
			Color:       color,
			Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		}}
	}
	return pages
}

// chunk splits ids into runs of at most size.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}

// evolveListPages renders an evolve list as two tabs, "2x Uses" first. The
// returned map gives the first page of each tab by button id.
func evolveListPages(entries []db.EvolveEntry, perPage, color int) ([]Page, map[string]int) {
	var once, twice []string
	for _, e := range entries {
		if e.Uses >= db.MaxEvolveUses {
			twice = append(twice, e.ID)
		} else {
			once = append(once, e.ID)
		}
	}
	tab := func(name string, ids []string) []Page {
		chunks := chunk(ids, perPage)
		if len(chunks) == 0 {
			return []Page{{Embed: &discordgo.MessageEmbed{
				Title:       "📋 Your Evolve List - " + name,
				Description: codeBlock("No IDs in this category"),
				Color:       color,
				Footer:      &discordgo.MessageEmbedFooter{Text: name + " • 0 ID(s)"},
			}, Components: evolveComponents()}}
		}
		pages := make([]Page, len(chunks))
		for i, c := range chunks {
			pages[i] = Page{Embed: &discordgo.MessageEmbed{
				Title:       "📋 Your Evolve List - " + name,
				Description: codeBlock(strings.Join(c, " ")),
				Color:       color,
				Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d ID(s) • Page %d/%d", len(ids), i+1, len(chunks))},
			}, Components: evolveComponents()}
		}
		return pages
	}
	pages := tab("2x Uses", twice)
	tabs := map[string]int{tabTwiceID: 0, tabOnceID: len(pages)}
	return append(pages, tab("1x Use", once)...), tabs
}

func evolveComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Once (1x)", Style: discordgo.SecondaryButton, CustomID: tabOnceID},
			discordgo.Button{Label: "Twice (2x)", Style: discordgo.SecondaryButton, CustomID: tabTwiceID},
		}},
		pageComponents()[0],
	}
}

func releaseEmbed(targetBotID string, ids []string, remaining, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: codeBlock(fmt.Sprintf("<@%s> r %s", targetBotID, strings.Join(ids, " "))),
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d ID(s) removed from your release list • %d remaining", len(ids), remaining),
		},
	}
}

func evolveEmbed(targetBotID string, ids []string, remaining, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: codeBlock(fmt.Sprintf("<@%s> evolve %s", targetBotID, strings.Join(ids, " "))),
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d ID(s) used for evolution • %d remaining", len(ids), remaining),
		},
	}
}

func helpText(prefix string, timeout time.Duration, releases, evolves bool) string {
	var b strings.Builder
	b.WriteString("**Recording**\n")
	fmt.Fprintf(&b, "`%sid` (reply to a message): record Pokemon IDs from its embeds as it is edited. ", prefix)
	fmt.Fprintf(&b, "Stops with the button or after %s without new IDs.\n", humanWait(timeout))
	if releases {
		b.WriteString("\n**Release list**\n")
		fmt.Fprintf(&b, "`%sreleaseadd|ra <ids...>` add IDs\n", prefix)
		fmt.Fprintf(&b, "`%sreleaseremove|rr <ids...>` remove IDs\n", prefix)
		fmt.Fprintf(&b, "`%sreleaseclear|rc` clear your list\n", prefix)
		fmt.Fprintf(&b, "`%sreleaselist|rl` show your list\n", prefix)
		fmt.Fprintf(&b, "`%srelease|r <count>` or `/release` release the first IDs on your list\n", prefix)
	}
	if evolves {
		b.WriteString("\n**Evolve list**\n")
		fmt.Fprintf(&b, "`%sevolveadd|ea <ids...> [--once]` add IDs with 2 uses, or 1 with --once\n", prefix)
		fmt.Fprintf(&b, "`%sevolveremove|er <ids...> [--once]` remove IDs, or one use with --once\n", prefix)
		fmt.Fprintf(&b, "`%sevolveclear|ec` clear your list\n", prefix)
		fmt.Fprintf(&b, "`%sevolvelist|el` show your list\n", prefix)
		fmt.Fprintf(&b, "`%sevolve|e <count>` or `/evolve` use IDs with the most uses first\n", prefix)
	}
	return b.String()
}
