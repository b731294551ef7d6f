package envelope

// Code is a stable wire error code. Values MUST NOT be renumbered once
// shipped: the browser-extension client switches on the integer, not the
// name.
type Code int

const (
	InvalidMessage              Code = 1
	UnrecognisedProtocol        Code = 2
	AuthFailed                  Code = 3
	AuthExpired                 Code = 4
	AuthRestart                 Code = 5
	AuthClientSecurityLevelLow  Code = 6
	AuthMissingParam            Code = 7
	VersionClientTooLow         Code = 8
)

// String renders the code's wire name, useful for log fields — never sent
// over the wire in place of the numeric code.
func (c Code) String() string {
	switch c {
	case InvalidMessage:
		return "INVALID_MESSAGE"
	case UnrecognisedProtocol:
		return "UNRECOGNISED_PROTOCOL"
	case AuthFailed:
		return "AUTH_FAILED"
	case AuthExpired:
		return "AUTH_EXPIRED"
	case AuthRestart:
		return "AUTH_RESTART"
	case AuthClientSecurityLevelLow:
		return "AUTH_CLIENT_SECURITY_LEVEL_TOO_LOW"
	case AuthMissingParam:
		return "AUTH_MISSING_PARAM"
	case VersionClientTooLow:
		return "VERSION_CLIENT_TOO_LOW"
	default:
		return "UNKNOWN"
	}
}
