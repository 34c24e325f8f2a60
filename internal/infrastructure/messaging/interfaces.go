// Package messaging defines interfaces for real-time communication.
package messaging

import "time"

// Broadcaster defines the interface for managing tab connections and fanning
// out activity and sign-out notifications across a user's tabs.
type Broadcaster interface {
	AddTab(userID, tabID string) chan string
	RemoveTab(ch chan string, userID, tabID string)
	GetTabCount(userID string) int
	PublishActivity(userID, tabID string, lastActivity time.Time)
	BroadcastSignOut(userID string)
}
