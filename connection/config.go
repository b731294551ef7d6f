package connection

import "time"

// Config carries the per-server parameters the state machine gates on.
// It is populated from config.Config at daemon startup.
type Config struct {
	// VersionToken is this server's own version token (envelope.Version's
	// little-endian [build,minor,major,0] encoding), compared against
	// every inbound envelope's version.
	VersionToken int32

	// RequiredFeatures are feature names that, if the client advertises
	// all of them, excuse a version mismatch (spec.md §4.6).
	RequiredFeatures []string

	// SecurityLevelClientMinimum is the lowest tier a client may declare
	// on a setup envelope before being rejected.
	SecurityLevelClientMinimum int

	// DefaultSecurityLevel is the tier used to persist a freshly paired
	// KeyContainer when the client's own envelope omits one.
	DefaultSecurityLevel int

	// AuthorisationExpiry is how long a freshly paired KeyContainer
	// remains valid before a reconnect must re-pair via SRP.
	AuthorisationExpiry time.Duration
}
