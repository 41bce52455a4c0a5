package testutil

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// SentMessage is a message posted through FakeDiscord.
type SentMessage struct {
	ChannelID string
	ID        string
	Data      *discordgo.MessageSend
}

// FakeDiscord records REST calls in memory. It satisfies bot.API.
type FakeDiscord struct {
	mu        sync.Mutex
	messages  map[string]*discordgo.Message
	sent      []SentMessage
	edits     []*discordgo.MessageEdit
	responses []*discordgo.InteractionResponse
	commands  []*discordgo.ApplicationCommand
	nextID    int

	FetchErr error
	SendErr  error
	EditErr  error
}

// NewFakeDiscord returns an empty fake.
func NewFakeDiscord() *FakeDiscord {
	return &FakeDiscord{messages: make(map[string]*discordgo.Message)}
}

// Put stores a message that ChannelMessage will return.
func (f *FakeDiscord) Put(m *discordgo.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.ID] = m
}

// RESTError builds the error discordgo returns for a failed request.
func RESTError(status, code int, msg string) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: status, Status: fmt.Sprintf("%d %s", status, http.StatusText(status))},
		ResponseBody: []byte(fmt.Sprintf(`{"message":%q,"code":%d}`, msg, code)),
		Message:      &discordgo.APIErrorMessage{Code: code, Message: msg},
	}
}

func (f *FakeDiscord) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	m, ok := f.messages[messageID]
	if !ok || m.ChannelID != channelID {
		return nil, RESTError(http.StatusNotFound, 10008, "Unknown Message")
	}
	return m, nil
}

func (f *FakeDiscord) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.nextID++
	id := fmt.Sprintf("sent-%d", f.nextID)
	f.sent = append(f.sent, SentMessage{ChannelID: channelID, ID: id, Data: data})
	return &discordgo.Message{ID: id, ChannelID: channelID, Content: data.Content, Embeds: data.Embeds}, nil
}

func (f *FakeDiscord) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EditErr != nil {
		return nil, f.EditErr
	}
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *FakeDiscord) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *FakeDiscord) ApplicationCommandBulkOverwrite(_, _ string, commands []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append([]*discordgo.ApplicationCommand(nil), commands...)
	return commands, nil
}

// Commands returns the application commands from the last bulk overwrite.
func (f *FakeDiscord) Commands() []*discordgo.ApplicationCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.ApplicationCommand(nil), f.commands...)
}

// Sent returns a copy of every posted message.
func (f *FakeDiscord) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

// LastSent returns the most recent posted message; it fails the test when none exists.
func (f *FakeDiscord) LastSent(t *testing.T) SentMessage {
	t.Helper()
	s := f.Sent()
	if len(s) == 0 {
		t.Fatal("no messages sent")
	}
	return s[len(s)-1]
}

// WaitSent blocks until at least n messages were posted.
func (f *FakeDiscord) WaitSent(t *testing.T, n int) []SentMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := f.Sent()
		if len(s) >= n {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d sent messages, have %d", n, len(s))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Edits returns a copy of every message edit.
func (f *FakeDiscord) Edits() []*discordgo.MessageEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageEdit(nil), f.edits...)
}

// Responses returns a copy of every interaction response.
func (f *FakeDiscord) Responses() []*discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), f.responses...)
}
