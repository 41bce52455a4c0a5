package bot

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jellydator/ttlcache/v3"
)

// Page is one rendered view of a paginated message: plain content, an embed, or both.
// Components replaces the default ◀/▶ row when set.
type Page struct {
	Content    string
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// book is the navigation state of one message. tabs maps a tab button id to
// the index of its first page; turning never leaves the current tab.
type book struct {
	mu      sync.Mutex
	pages   []Page
	tabs    map[string]int
	current int
}

// span returns the page range [lo, hi) of the tab holding the current page.
func (b *book) span() (lo, hi int) {
	lo, hi = 0, len(b.pages)
	for _, start := range b.tabs {
		if start <= b.current && start > lo {
			lo = start
		}
		if start > b.current && start < hi {
			hi = start
		}
	}
	return lo, hi
}

// Pager keeps the navigation state of paginated messages, keyed by message id.
// Entries expire after the configured idle time; reads extend it.
type Pager struct {
	cache *ttlcache.Cache[string, *book]
}

// NewPager starts a pager whose entries live for ttl after their last use.
func NewPager(ttl time.Duration) *Pager {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *book](ttl),
	)
	go cache.Start()
	return &Pager{cache: cache}
}

// Track registers the pages of a freshly sent message. Single page messages are not tracked.
func (p *Pager) Track(messageID string, pages []Page) { p.TrackTabs(messageID, pages, nil) }

// TrackTabs is Track for messages whose pages are grouped into tabs.
func (p *Pager) TrackTabs(messageID string, pages []Page, tabs map[string]int) {
	if len(pages) < 2 {
		return
	}
	p.cache.Set(messageID, &book{pages: pages, tabs: tabs}, ttlcache.DefaultTTL)
}

// Turn moves messageID's cursor by delta. ok is false when the message is
// unknown (expired) or the move would leave the page range of the current tab.
func (p *Pager) Turn(messageID string, delta int) (page Page, index int, ok bool) {
	item := p.cache.Get(messageID)
	if item == nil {
		return Page{}, 0, false
	}
	b := item.Value()
	b.mu.Lock()
	defer b.mu.Unlock()
	lo, hi := b.span()
	next := b.current + delta
	if next < lo || next >= hi {
		return Page{}, b.current, false
	}
	b.current = next
	return b.pages[next], next, true
}

// Jump moves messageID's cursor to the first page of tab.
func (p *Pager) Jump(messageID, tab string) (Page, bool) {
	item := p.cache.Get(messageID)
	if item == nil {
		return Page{}, false
	}
	b := item.Value()
	b.mu.Lock()
	defer b.mu.Unlock()
	start, ok := b.tabs[tab]
	if !ok || start >= len(b.pages) {
		return Page{}, false
	}
	b.current = start
	return b.pages[start], true
}

// Len returns the number of live paginated messages.
func (p *Pager) Len() int { return p.cache.Len() }

// Stop halts the expiry loop.
func (p *Pager) Stop() { p.cache.Stop() }
