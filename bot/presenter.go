package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/recorder"
)

// Presenter posts the control message for new sessions.
type Presenter struct {
	api   API
	pager *Pager
	color int
}

// NewPresenter returns a recorder.Presenter that renders into Discord.
func NewPresenter(api API, pager *Pager, color int) *Presenter {
	return &Presenter{api: api, pager: pager, color: color}
}

// Open sends the status embed with its Stop button to the target's channel.
func (p *Presenter) Open(ctx context.Context, st recorder.Status) (recorder.Surface, error) {
	m, err := p.api.ChannelMessageSendComplex(st.Target.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{statusEmbed(st, p.color, false)},
		Components: stopComponents(st.Target, false),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("send control message: %w", err)
	}
	return &surface{p: p, channelID: m.ChannelID, controlID: m.ID}, nil
}

// surface is the control message of one session plus the channel reports go to.
type surface struct {
	p         *Presenter
	channelID string
	controlID string
}

func (s *surface) Update(ctx context.Context, st recorder.Status) error {
	embeds := []*discordgo.MessageEmbed{statusEmbed(st, s.p.color, true)}
	_, err := s.p.api.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:      s.controlID,
		Channel: s.channelID,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	return err
}

// Finish disables the Stop button. A timed out session also swaps the embed
// for the timeout notice.
func (s *surface) Finish(ctx context.Context, st recorder.Status) error {
	components := stopComponents(st.Target, true)
	edit := &discordgo.MessageEdit{
		ID:         s.controlID,
		Channel:    s.channelID,
		Components: &components,
	}
	if st.State == recorder.StateTimedOut {
		embeds := []*discordgo.MessageEmbed{timeoutEmbed(st, s.p.color)}
		edit.Embeds = &embeds
	}
	_, err := s.p.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (s *surface) Publish(ctx context.Context, r recorder.Report) error {
	return s.p.sendPages(ctx, s.channelID, nil, reportPages(r), nil)
}

// sendPages sends the first page, attaching navigation buttons and tracking
// state when there is more than one. tabs groups pages as in Pager.TrackTabs.
func (p *Presenter) sendPages(ctx context.Context, channelID string, ref *discordgo.MessageReference, pages []Page, tabs map[string]int) error {
	if len(pages) == 0 {
		return nil
	}
	data := &discordgo.MessageSend{
		Content:         pages[0].Content,
		Reference:       ref,
		AllowedMentions: &discordgo.MessageAllowedMentions{RepliedUser: false},
	}
	if pages[0].Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{pages[0].Embed}
	}
	switch {
	case pages[0].Components != nil:
		data.Components = pages[0].Components
	case len(pages) > 1:
		data.Components = pageComponents()
	}
	m, err := p.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send pages: %w", err)
	}
	p.pager.TrackTabs(m.ID, pages, tabs)
	return nil
}
