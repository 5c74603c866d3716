// Package constants holds shared defaults for bkp-drive.
package constants

import (
	"time"
)

// Server defaults
const (
	// DefaultBaseURL is the API root of a locally running backend.
	DefaultBaseURL = "http://localhost:18666/api/v1"

	// DefaultRequestsPerSecond paces calls to the backend.
	DefaultRequestsPerSecond = 10.0

	// DefaultBurst is the token bucket size for request pacing.
	DefaultBurst = 20

	// DefaultMaxRetries is zero: a failed request surfaces to the caller,
	// who decides whether to try again.
	DefaultMaxRetries = 0

	// RetryWaitMin and RetryWaitMax bound the retry backoff when retries are enabled.
	RetryWaitMin = 1 * time.Second
	RetryWaitMax = 30 * time.Second

	// ConnectionTestTimeout bounds 'config test'.
	ConnectionTestTimeout = 10 * time.Second
)

// HTTP transport timeouts
const (
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPClientTimeout is the overall timeout of a bare ConfigureHTTPClient
	// client. The drive client built by http.NewClient clears it and bounds
	// every call by its context.
	HTTPClientTimeout = 300 * time.Second

	// ProxyWarmupTimeout bounds the optional proxy warmup request.
	ProxyWarmupTimeout = 15 * time.Second

	// MaxErrorBodyBytes limits how much of an error body is read into messages.
	MaxErrorBodyBytes = 4096
)

// Event bus sizing
const (
	EventBusDefaultBuffer = 1000
	EventBusMaxBuffer     = 10000
)

// Thumbnails
const (
	// ListThumbnailSize is the edge length of list-mode thumbnails.
	ListThumbnailSize = 32

	// GridThumbnailSize is the edge length of grid-mode thumbnails.
	GridThumbnailSize = 128

	// DefaultThumbnailWorkers bounds concurrent thumbnail fetches.
	DefaultThumbnailWorkers = 8
)

// Authentication
const (
	// DefaultTokenLifetime applies when neither the login response nor the
	// token itself carries an expiry.
	DefaultTokenLifetime = 24 * time.Hour
)

// Local state
const (
	// StateDirName is the directory under the config dir holding bbolt stores.
	StateDirName = "state"

	// PersistentStoreFile survives across sessions ("remember me").
	PersistentStoreFile = "persistent.db"

	// SessionStoreFile is scoped to one shell session and removed on logout.
	SessionStoreFile = "session.db"

	// StoreOpenTimeout bounds waiting for the bbolt file lock.
	StoreOpenTimeout = 1 * time.Second
)

// ImageExtensions lists extensions rendered with image thumbnails.
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp"}

// VideoExtensions lists extensions rendered with video snapshot thumbnails.
var VideoExtensions = []string{"mp4", "avi", "mov", "wmv", "flv", "webm", "mkv", "3gp", "f4v", "rmvb"}
