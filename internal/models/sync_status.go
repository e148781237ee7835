package models

import "time"

// SyncStatus is the derived view of outstanding sync work, for display
type SyncStatus struct {
	PendingCount int        `json:"pendingCount"`
	FailedCount  int        `json:"failedCount"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
	IsSyncing    bool       `json:"isSyncing"`
}
