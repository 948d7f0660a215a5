package utils

import (
	"time"
)

// Sync engine constants
const (
	// MaxSyncRetries is the number of transient deploy failures tolerated
	// before a user's sync status becomes failed
	MaxSyncRetries = 3

	// SyncBatchSize is the number of users synced concurrently per batch
	SyncBatchSize = 10

	// SyncBatchDelay is the pause inserted between batches to respect
	// external API quotas
	SyncBatchDelay = 500 * time.Millisecond
)

// Scheduler constants
const (
	// DefaultSyncInterval is the default period of the organization sync trigger
	DefaultSyncInterval = 5 * time.Minute

	// DefaultCampaignInterval is the default period of the campaign
	// activation/completion trigger
	DefaultCampaignInterval = time.Minute
)

// Cache constants
const (
	// RenderCacheTTL bounds how long a rendered signature stays cached
	RenderCacheTTL = 15 * time.Minute

	// RenderCacheKeyPrefix namespaces render cache keys in redis
	RenderCacheKeyPrefix = "clearsign:render"
)
