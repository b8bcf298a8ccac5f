package constants

import "time"

const (
	AppName            = "habio"
	DefaultKeyringUser = "session-secret"
	DefaultDataPath    = "~/.config/habio/habio.db"
	DefaultPlatform    = "co.habio.tracker"
	DefaultListenAddr  = ":8780"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MinPasswordLength is enforced by sign-up and sign-in before any remote call.
	MinPasswordLength = 8

	// Embedded backend constants
	SessionTTL        = 30 * 24 * time.Hour
	ServerPidFileName = "habio-server.pid"

	// Remote client constants
	RemoteTimeout     = 10 * time.Second
	RemoteMaxAttempts = 3
	RemoteRetryDelay  = 200 * time.Millisecond

	// HTTP headers understood by `habio serve`
	HeaderSession = "X-Habio-Session"
	HeaderProject = "X-Habio-Project"
)
