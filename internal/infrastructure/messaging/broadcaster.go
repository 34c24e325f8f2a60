// Package messaging provides the concrete implementation of the cross-tab
// activity broadcaster.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
)

// ActivityMessage is the payload fanned out to a user's other tabs when one
// tab observes activity. LastActivity is unix milliseconds.
type ActivityMessage struct {
	UserID       string `json:"userId"`
	TabID        string `json:"tabId"`
	LastActivity int64  `json:"lastActivity"`
}

// Encode renders the message as JSON for the wire.
func (m ActivityMessage) Encode() string {
	raw, _ := json.Marshal(m)
	return string(raw)
}

// ActivityBroadcaster manages user-scoped, tab-specific connections. A tab
// publishing activity reaches every other tab of the same user but never
// echoes back to itself.
type ActivityBroadcaster struct {
	userTabs map[string]map[string][]chan string // userId -> tabId -> []channels
	mu       sync.Mutex
	logger   *logging.ChanneledLogger
}

var (
	globalBroadcaster *ActivityBroadcaster
	once              sync.Once
)

// NewActivityBroadcaster creates the singleton ActivityBroadcaster instance.
func NewActivityBroadcaster(logger *logging.ChanneledLogger) *ActivityBroadcaster {
	once.Do(func() {
		globalBroadcaster = &ActivityBroadcaster{
			userTabs: make(map[string]map[string][]chan string),
			logger:   logger,
		}
	})
	return globalBroadcaster
}

// AddTab registers a new tab connection for a user.
func (b *ActivityBroadcaster) AddTab(userID, tabID string) chan string {
	ch := make(chan string, 10)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.userTabs[userID] == nil {
		b.userTabs[userID] = make(map[string][]chan string)
	}

	if b.userTabs[userID][tabID] == nil {
		b.userTabs[userID][tabID] = make([]chan string, 0)
	}
	b.userTabs[userID][tabID] = append(b.userTabs[userID][tabID], ch)

	b.logger.Broadcast().Debug("Tab registered", "userId", userID, "tabId", tabID)
	return ch
}

// RemoveTab removes a tab connection for a user.
func (b *ActivityBroadcaster) RemoveTab(ch chan string, userID, tabID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tabs, exists := b.userTabs[userID]; exists {
		if tabClients, exists := tabs[tabID]; exists {
			newClients := make([]chan string, 0, len(tabClients)-1)
			for _, client := range tabClients {
				if client != ch {
					newClients = append(newClients, client)
				}
			}
			tabs[tabID] = newClients

			if len(tabs[tabID]) == 0 {
				delete(tabs, tabID)
			}
		}

		if len(tabs) == 0 {
			delete(b.userTabs, userID)
		}
	}
	b.logger.Broadcast().Debug("Tab unregistered", "userId", userID, "tabId", tabID)
}

// GetTabCount returns the connection count for a user across all tabs.
func (b *ActivityBroadcaster) GetTabCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, clients := range b.userTabs[userID] {
		count += len(clients)
	}
	return count
}

// PublishActivity sends an activity timestamp from one tab to every other tab
// of the same user. Slow consumers get the message dropped rather than
// blocking the publisher.
func (b *ActivityBroadcaster) PublishActivity(userID, tabID string, lastActivity time.Time) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Broadcast().Error("Panic recovered in PublishActivity", "error", r, "userId", userID, "tabId", tabID)
		}
	}()

	message := ActivityMessage{
		UserID:       userID,
		TabID:        tabID,
		LastActivity: lastActivity.UnixMilli(),
	}.Encode()

	b.mu.Lock()
	defer b.mu.Unlock()

	for otherTab, clients := range b.userTabs[userID] {
		if otherTab == tabID {
			continue
		}
		for _, ch := range clients {
			select {
			case ch <- message:
			default:
				b.logger.Broadcast().Warn("Activity channel full, message dropped", "userId", userID, "tabId", otherTab)
			}
		}
	}
}

// BroadcastSignOut tells every tab of a user, including the originator, that
// the session ended.
func (b *ActivityBroadcaster) BroadcastSignOut(userID string) {
	message := `{"event":"signed_out"}`

	b.mu.Lock()
	defer b.mu.Unlock()

	for tabID, clients := range b.userTabs[userID] {
		for _, ch := range clients {
			select {
			case ch <- message:
			default:
				b.logger.Broadcast().Warn("Sign-out channel full, message dropped", "userId", userID, "tabId", tabID)
			}
		}
	}
}
