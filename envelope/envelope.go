// Package envelope implements the fixed outer wire message schema shared
// between keeagentd and browser-extension clients: parsing, serialization,
// and the INVALID_MESSAGE failure path.
package envelope

import "encoding/json"

// Protocol is the outer message discriminator.
type Protocol string

const (
	ProtocolSetup   Protocol = "setup"
	ProtocolJSONRPC Protocol = "jsonrpc"
	ProtocolError   Protocol = "error"
)

// SRPStage names the handshake step carried by an Envelope.SRP payload.
type SRPStage string

const (
	StageIdentifyToClient SRPStage = "identifyToClient"
	StageIdentifyToServer SRPStage = "identifyToServer"
	StageProofToClient    SRPStage = "proofToClient"
	StageProofToServer    SRPStage = "proofToServer"
)

// SRP carries the SRP-6a handshake sub-payload.
type SRP struct {
	Stage         SRPStage `json:"stage,omitempty"`
	I             string   `json:"I,omitempty"`
	A             string   `json:"A,omitempty"`
	B             string   `json:"B,omitempty"`
	S             string   `json:"s,omitempty"`
	M             string   `json:"M,omitempty"`
	M2            string   `json:"M2,omitempty"`
	SecurityLevel int      `json:"securityLevel"`
}

// Key carries the stored-key reconnection sub-payload.
type Key struct {
	Username      string `json:"username,omitempty"`
	SC            string `json:"sc,omitempty"`
	CC            string `json:"cc,omitempty"`
	CR            string `json:"cr,omitempty"`
	SR            string `json:"sr,omitempty"`
	SecurityLevel int    `json:"securityLevel"`
}

// JSONRPC carries an encrypted RPC payload under the session cipher.
type JSONRPC struct {
	IV      string `json:"iv"`
	Message string `json:"message"`
	HMAC    string `json:"hmac"`
}

// ErrorPayload carries a stable wire error code and its format parameters.
type ErrorPayload struct {
	Code          Code     `json:"code"`
	MessageParams []string `json:"messageParams,omitempty"`
}

// Envelope is the canonical wire object described by the protocol schema.
type Envelope struct {
	Protocol                 Protocol      `json:"protocol"`
	Version                  int32         `json:"version"`
	Features                 []string      `json:"features,omitempty"`
	SRP                      *SRP          `json:"srp,omitempty"`
	Key                      *Key          `json:"key,omitempty"`
	JSONRPC                  *JSONRPC      `json:"jsonrpc,omitempty"`
	Error                    *ErrorPayload `json:"error,omitempty"`
	ClientDisplayName        string        `json:"clientDisplayName,omitempty"`
	ClientDisplayDescription string        `json:"clientDisplayDescription,omitempty"`
}

// ParseError reports a malformed envelope. The caller collapses this to an
// INVALID_MESSAGE error envelope and closes the transport, per the protocol
// error-handling taxonomy.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return "envelope: invalid message: " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Decode parses a wire frame into an Envelope. Unknown fields are ignored;
// absent optional sub-objects are left nil.
func Decode(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return &env, nil
}

// Encode serializes an Envelope to its wire representation.
func Encode(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// NewError builds an "error" protocol envelope carrying a single wire error
// code, the shape every component in the core collapses failures to.
func NewError(version int32, code Code, params ...string) *Envelope {
	return &Envelope{
		Protocol: ProtocolError,
		Version:  version,
		Error: &ErrorPayload{
			Code:          code,
			MessageParams: params,
		},
	}
}
