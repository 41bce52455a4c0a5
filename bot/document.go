package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/recorder"
)

// DocumentFromMessage converts a message into the recorder's view of it: one
// section per embed description. A message without embeds has no sections.
func DocumentFromMessage(m *discordgo.Message) recorder.Document {
	doc := recorder.Document{Ref: recorder.DocumentRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		doc.Sections = append(doc.Sections, e.Description)
	}
	return doc
}

// Source reads target messages over REST.
type Source struct {
	api API
}

// NewSource returns a recorder.DocumentSource backed by api.
func NewSource(api API) *Source { return &Source{api: api} }

// Fetch implements recorder.DocumentSource.
func (s *Source) Fetch(ctx context.Context, ref recorder.DocumentRef) (recorder.Document, error) {
	m, err := s.api.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return recorder.Document{}, &recorder.UnavailableError{Reason: ClassifyFetchError(err), Err: err}
	}
	doc := DocumentFromMessage(m)
	// fetched messages usually omit guild_id
	if doc.Ref.GuildID == "" {
		doc.Ref.GuildID = ref.GuildID
	}
	if doc.Ref.ChannelID == "" {
		doc.Ref.ChannelID = ref.ChannelID
	}
	return doc, nil
}
