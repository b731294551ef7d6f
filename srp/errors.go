package srp

import "fmt"

// ErrMissingParam reports an empty required SRP field, surfaced to the wire
// as AUTH_MISSING_PARAM{field}.
type ErrMissingParam struct {
	Field string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("srp: missing parameter %q", e.Field)
}

// ErrInvalidPublicValue reports A (or B) congruent to 0 mod N, the SRP-6a
// safeguard against a trivially-derivable session key.
type ErrInvalidPublicValue struct {
	Which string
}

func (e *ErrInvalidPublicValue) Error() string {
	return fmt.Sprintf("srp: invalid public value %s (≡ 0 mod N)", e.Which)
}

// ErrStageMismatch reports a proofToServer received before identifyToServer
// completed on this engine. Per spec §4.2 this is silently dropped by the
// caller, never surfaced as a wire error.
var ErrStageMismatch = fmt.Errorf("srp: stage mismatch")

// ErrAuthFailed reports an M1 that does not match the server's transcript.
var ErrAuthFailed = fmt.Errorf("srp: keys do not match")
