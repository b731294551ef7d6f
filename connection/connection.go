// Package connection implements the per-connection authorization state
// machine that orchestrates the SRP-6a engine, the stored-key challenge,
// the key container store, and the message cipher: spec.md §4.6.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keeagent/keeagentd/cipher"
	"github.com/keeagent/keeagentd/envelope"
	"github.com/keeagent/keeagentd/internal/keystore"
	"github.com/keeagent/keeagentd/internal/metrics"
	"github.com/keeagent/keeagentd/keychallenge"
	"github.com/keeagent/keeagentd/pkg/storage"
	"github.com/keeagent/keeagentd/srp"
	"github.com/keeagent/keeagentd/uihost"
)

// State is a connection's authorization phase: AWAIT_SETUP or AUTHORISED.
type State int

const (
	StateAwaitSetup State = iota
	StateAuthorised
)

// RPCHandler dispatches one decrypted jsonrpc payload to the application
// and returns the plaintext response to encrypt and send back.
type RPCHandler func(ctx context.Context, username string, payload string) (string, error)

// Connection is one state-machine instance, owned by exactly one transport.
// Inbound envelopes on a connection are processed serially by the
// transport's read loop, so only Authorised needs atomic access: it may be
// observed by a concurrent outbound-signal task (spec.md §5).
type Connection struct {
	cfg     Config
	keys    *keystore.Store
	ui      uihost.Host
	handler RPCHandler
	remote  string

	mu              sync.Mutex
	state           State
	featuresLocked  bool
	features        []string
	srpEngine       *srp.Engine
	challenge       *keychallenge.Challenge
	pendingUsername string

	cipher   *cipher.Cipher
	username string

	authorised atomic.Bool

	// audit is the optional pairing audit trail. Nil means auditing is
	// disabled, matching the default audit.enabled: false configuration;
	// every call site guards on it being non-nil and never lets an audit
	// failure affect the handshake outcome.
	audit storage.Store
}

// SetAudit attaches the pairing audit store this connection reports
// handshake outcomes to. Passing nil disables auditing, which is also the
// zero-value behaviour.
func (c *Connection) SetAudit(audit storage.Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audit = audit
}

func (c *Connection) recordPairing(ctx context.Context, username, clientName string, outcome storage.Outcome, level int) {
	if c.audit == nil {
		return
	}
	_ = c.audit.PairingStore().Create(ctx, &storage.PairingRecord{
		Username:          username,
		ClientDisplayName: clientName,
		Outcome:           outcome,
		SecurityLevel:     level,
		RemoteAddr:        c.remote,
		Timestamp:         time.Now().UTC(),
	})
}

// New creates a connection in AWAIT_SETUP, the state every transport open
// starts in per spec.md §4.6.
func New(cfg Config, keys *keystore.Store, ui uihost.Host, handler RPCHandler, remoteAddr string) *Connection {
	return &Connection{
		cfg:       cfg,
		keys:      keys,
		ui:        ui,
		handler:   handler,
		remote:    remoteAddr,
		state:     StateAwaitSetup,
		srpEngine: srp.NewEngine(srp.DefaultGroup()),
	}
}

// Authorised reports whether this connection has completed either a fresh
// SRP pairing or a stored-key reconnection.
func (c *Connection) Authorised() bool {
	return c.authorised.Load()
}

// Username returns the identity bound to this connection once authorised.
func (c *Connection) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// VersionToken returns this connection's configured server version token,
// used by the transport to stamp envelopes it originates outside of
// Handle (e.g. a parse-failure error envelope).
func (c *Connection) VersionToken() int32 {
	return c.cfg.VersionToken
}

// Handle processes one inbound envelope and returns the envelope to send
// back, or nil if nothing should be sent (a silently-dropped stage
// mismatch per spec.md §4.2).
func (c *Connection) Handle(ctx context.Context, env *envelope.Envelope) *envelope.Envelope {
	start := time.Now()
	defer func() {
		metrics.ConnectionDuration.WithLabelValues("handle_envelope").Observe(time.Since(start).Seconds())
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordFeatures(env)
	if resp := c.gateVersion(env); resp != nil {
		return resp
	}

	switch c.state {
	case StateAwaitSetup:
		return c.handleAwaitSetup(ctx, env)
	case StateAuthorised:
		return c.handleAuthorised(ctx, env)
	default:
		return nil
	}
}

func (c *Connection) gateVersion(env *envelope.Envelope) *envelope.Envelope {
	if env.Version == c.cfg.VersionToken {
		return nil
	}
	if coversAll(c.features, c.cfg.RequiredFeatures) {
		return nil
	}
	return envelope.NewError(c.cfg.VersionToken, envelope.VersionClientTooLow,
		strconv.FormatInt(int64(c.cfg.VersionToken), 10))
}

func (c *Connection) recordFeatures(env *envelope.Envelope) {
	if !c.featuresLocked && len(env.Features) > 0 {
		c.features = env.Features
		c.featuresLocked = true
	}
}

func coversAll(have, required []string) bool {
	if len(required) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, f := range have {
		set[f] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}
	return true
}

func (c *Connection) handleAwaitSetup(ctx context.Context, env *envelope.Envelope) *envelope.Envelope {
	if env.Protocol != envelope.ProtocolSetup {
		return envelope.NewError(c.cfg.VersionToken, envelope.UnrecognisedProtocol)
	}

	if resp := c.gateSecurityLevel(env); resp != nil {
		return resp
	}

	resp := c.dispatchSetup(ctx, env)
	metrics.MessagesProcessed.WithLabelValues("setup", messageStatus(resp)).Inc()
	return resp
}

func (c *Connection) dispatchSetup(ctx context.Context, env *envelope.Envelope) *envelope.Envelope {
	switch {
	case env.SRP != nil && env.SRP.Stage == envelope.StageIdentifyToServer:
		return c.handleIdentifyToServer(env)
	case env.SRP != nil && env.SRP.Stage == envelope.StageProofToServer:
		return c.handleProofToServer(ctx, env)
	case env.Key != nil && env.Key.Username != "":
		return c.handleKeyUsername(ctx, env)
	case env.Key != nil && env.Key.CC != "" && env.Key.CR != "":
		return c.handleKeyChallenge(ctx, env)
	default:
		return envelope.NewError(c.cfg.VersionToken, envelope.InvalidMessage)
	}
}

// messageStatus classifies a handler's response envelope for the messages
// counter: a nil stage-mismatch drop and an "error" protocol envelope both
// count as failure, anything else as success.
func messageStatus(resp *envelope.Envelope) string {
	if resp == nil || resp.Error != nil {
		return "failure"
	}
	return "success"
}

// gateSecurityLevel enforces SecurityLevelClientMinimum against the
// securityLevel the client declares on the first message of a handshake
// (identifyToServer, or the key-username reconnect request). spec.md's own
// wire examples show later rounds in the same handshake — proofToServer,
// and the cc/cr challenge response — omitting securityLevel entirely, so
// gating on it there would reject a spec-literal client on its second
// round with AUTH_CLIENT_SECURITY_LEVEL_TOO_LOW instead of completing the
// handshake.
func (c *Connection) gateSecurityLevel(env *envelope.Envelope) *envelope.Envelope {
	var level int
	switch {
	case env.SRP != nil && env.SRP.Stage == envelope.StageIdentifyToServer:
		level = env.SRP.SecurityLevel
	case env.Key != nil && env.Key.Username != "":
		level = env.Key.SecurityLevel
	default:
		return nil
	}
	if level < c.cfg.SecurityLevelClientMinimum {
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthClientSecurityLevelLow,
			strconv.Itoa(c.cfg.SecurityLevelClientMinimum))
	}
	return nil
}

func (c *Connection) handleIdentifyToServer(env *envelope.Envelope) *envelope.Envelope {
	start := time.Now()
	defer func() {
		metrics.PairingDuration.WithLabelValues("identify").Observe(time.Since(start).Seconds())
	}()

	c.srpEngine.Reset()
	metrics.PairingsInitiated.WithLabelValues(strconv.Itoa(env.SRP.SecurityLevel)).Inc()

	password, err := c.srpEngine.NewVisualPassword(env.SRP.I)
	if err != nil {
		return envelope.NewError(c.cfg.VersionToken, envelope.InvalidMessage)
	}

	s, B, err := c.srpEngine.Handshake(env.SRP.I, env.SRP.A)
	if err != nil {
		metrics.SRPOperations.WithLabelValues("handshake", "failure").Inc()
		return c.srpErrorEnvelope(err)
	}
	metrics.SRPOperations.WithLabelValues("handshake", "success").Inc()

	c.ui.PostModalDialog(context.Background(), uihost.DialogParams{
		Title:             "New client pairing",
		Message:           "Confirm this code matches what your browser shows",
		VisualPassword:    password,
		ClientDisplayName: env.ClientDisplayName,
	})

	return &envelope.Envelope{
		Protocol: envelope.ProtocolSetup,
		Version:  c.cfg.VersionToken,
		SRP: &envelope.SRP{
			Stage:         envelope.StageIdentifyToClient,
			S:             s,
			B:             B,
			SecurityLevel: c.cfg.DefaultSecurityLevel,
		},
	}
}

func (c *Connection) handleProofToServer(ctx context.Context, env *envelope.Envelope) *envelope.Envelope {
	start := time.Now()
	defer func() {
		metrics.PairingDuration.WithLabelValues("proof").Observe(time.Since(start).Seconds())
	}()

	if env.SRP.M == "" {
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthMissingParam, "M")
	}

	m2, keyHex, err := c.srpEngine.Authenticate(env.SRP.M)
	if err != nil {
		if errors.Is(err, srp.ErrStageMismatch) {
			return nil
		}
		metrics.SRPOperations.WithLabelValues("authenticate", "failure").Inc()
		metrics.PairingsCompleted.WithLabelValues("failure").Inc()
		c.recordPairing(ctx, c.srpEngine.Username(), env.ClientDisplayName, storage.OutcomeAuthFailed, env.SRP.SecurityLevel)
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthFailed, "Keys do not match")
	}
	metrics.SRPOperations.WithLabelValues("authenticate", "success").Inc()

	username := c.srpEngine.Username()
	tier := keystore.Tier(env.SRP.SecurityLevel)
	if tier == keystore.TierUnset {
		tier = keystore.Tier(c.cfg.DefaultSecurityLevel)
	}

	container := &keystore.Container{
		Key:         keyHex,
		Username:    username,
		ClientName:  env.ClientDisplayName,
		AuthExpires: time.Now().Add(c.cfg.AuthorisationExpiry).UTC().Format(time.RFC3339),
	}
	if err := c.keys.Save(tier, container); err != nil && !errors.Is(err, keystore.ErrNotPersisted) {
		// Persistence is best-effort at this tier; the pairing itself
		// already succeeded, so the session continues unauthenticated-
		// for-reconnect rather than failing the handshake outright.
		_ = err
	}

	cph, err := cipher.New(keyHex)
	if err != nil {
		metrics.PairingsCompleted.WithLabelValues("failure").Inc()
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthRestart)
	}

	c.cipher = cph
	c.username = username
	c.state = StateAuthorised
	c.authorised.Store(true)

	metrics.PairingsCompleted.WithLabelValues("success").Inc()
	c.recordPairing(ctx, username, env.ClientDisplayName, storage.OutcomePaired, int(tier))

	return &envelope.Envelope{
		Protocol: envelope.ProtocolSetup,
		Version:  c.cfg.VersionToken,
		SRP: &envelope.SRP{
			Stage:         envelope.StageProofToClient,
			M2:            m2,
			SecurityLevel: int(tier),
		},
	}
}

func (c *Connection) handleKeyUsername(ctx context.Context, env *envelope.Envelope) *envelope.Envelope {
	start := time.Now()
	defer func() {
		metrics.PairingDuration.WithLabelValues("key_username").Observe(time.Since(start).Seconds())
	}()

	container, err := c.keys.Load(env.Key.Username)
	if err != nil {
		c.recordPairing(ctx, env.Key.Username, env.ClientDisplayName, storage.OutcomeAuthFailed, env.Key.SecurityLevel)
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthFailed, "Stored key not found")
	}

	expires, parseErr := time.Parse(time.RFC3339, container.AuthExpires)
	if parseErr != nil || time.Now().After(expires) {
		metrics.ReconnectsCompleted.WithLabelValues("expired").Inc()
		c.recordPairing(ctx, container.Username, env.ClientDisplayName, storage.OutcomeExpired, env.Key.SecurityLevel)
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthExpired)
	}

	c.challenge = keychallenge.New([]byte(container.Key))
	c.pendingUsername = container.Username

	sc, err := c.challenge.ServerChallenge()
	if err != nil {
		return envelope.NewError(c.cfg.VersionToken, envelope.InvalidMessage)
	}

	// Persist sc so a captured-and-replayed challenge response cannot be
	// reused against a fresh process: best-effort, never fails the
	// handshake (spec.md §9 open question (b)).
	if c.audit != nil {
		if err := c.audit.NonceStore().CheckAndStore(ctx, sc, expires); err != nil {
			metrics.ReplayedChallengesDetected.Inc()
		}
	}

	return &envelope.Envelope{
		Protocol: envelope.ProtocolSetup,
		Version:  c.cfg.VersionToken,
		Key: &envelope.Key{
			SC:            sc,
			SecurityLevel: c.cfg.DefaultSecurityLevel,
		},
	}
}

func (c *Connection) handleKeyChallenge(ctx context.Context, env *envelope.Envelope) *envelope.Envelope {
	if c.challenge == nil {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.PairingDuration.WithLabelValues("key_challenge").Observe(time.Since(start).Seconds())
	}()

	pendingUsername := c.pendingUsername
	sr, err := c.challenge.Verify(env.Key.CC, env.Key.CR)
	c.challenge = nil
	if err != nil {
		metrics.ReconnectsCompleted.WithLabelValues("failure").Inc()
		c.recordPairing(ctx, pendingUsername, env.ClientDisplayName, storage.OutcomeAuthFailed, env.Key.SecurityLevel)
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthFailed, "Keys do not match")
	}

	container, loadErr := c.keys.Load(pendingUsername)
	if loadErr != nil {
		metrics.ReconnectsCompleted.WithLabelValues("failure").Inc()
		c.recordPairing(ctx, pendingUsername, env.ClientDisplayName, storage.OutcomeAuthFailed, env.Key.SecurityLevel)
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthFailed, "Stored key not found")
	}

	cph, err := cipher.New(container.Key)
	if err != nil {
		metrics.ReconnectsCompleted.WithLabelValues("failure").Inc()
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthRestart)
	}

	c.cipher = cph
	c.username = container.Username
	c.state = StateAuthorised
	c.authorised.Store(true)

	metrics.ReconnectsCompleted.WithLabelValues("success").Inc()
	c.recordPairing(ctx, container.Username, env.ClientDisplayName, storage.OutcomeReconnected, c.cfg.DefaultSecurityLevel)

	return &envelope.Envelope{
		Protocol: envelope.ProtocolSetup,
		Version:  c.cfg.VersionToken,
		Key: &envelope.Key{
			SR:            sr,
			SecurityLevel: c.cfg.DefaultSecurityLevel,
		},
	}
}

func (c *Connection) handleAuthorised(ctx context.Context, env *envelope.Envelope) *envelope.Envelope {
	start := time.Now()
	defer func() {
		metrics.MessageProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	if env.Protocol == envelope.ProtocolSetup {
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthRestart)
	}
	if env.Protocol != envelope.ProtocolJSONRPC {
		return envelope.NewError(c.cfg.VersionToken, envelope.UnrecognisedProtocol)
	}

	metrics.MessageSize.Observe(float64(len(env.JSONRPC.Message)))

	decryptStart := time.Now()
	plaintext, err := c.cipher.Decrypt(&cipher.Envelope{
		IV:      env.JSONRPC.IV,
		Message: env.JSONRPC.Message,
		HMAC:    env.JSONRPC.HMAC,
	})
	metrics.CipherOperationDuration.WithLabelValues("decrypt").Observe(time.Since(decryptStart).Seconds())
	if err != nil {
		metrics.CipherOperations.WithLabelValues("decrypt", "failure").Inc()
		metrics.MessagesProcessed.WithLabelValues("jsonrpc", "failure").Inc()
		// A corrupt key renders the channel unusable: force re-pairing
		// rather than let a tampered/garbled message desynchronize state.
		c.authorised.Store(false)
		c.state = StateAwaitSetup
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthRestart)
	}
	metrics.CipherOperations.WithLabelValues("decrypt", "success").Inc()

	response, err := c.invokeHandler(ctx, plaintext)
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("jsonrpc", "failure").Inc()
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthRestart)
	}

	encryptStart := time.Now()
	outEnv, err := c.cipher.Encrypt(response)
	metrics.CipherOperationDuration.WithLabelValues("encrypt").Observe(time.Since(encryptStart).Seconds())
	if err != nil {
		metrics.CipherOperations.WithLabelValues("encrypt", "failure").Inc()
		metrics.MessagesProcessed.WithLabelValues("jsonrpc", "failure").Inc()
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthRestart)
	}
	metrics.CipherOperations.WithLabelValues("encrypt", "success").Inc()
	metrics.MessagesProcessed.WithLabelValues("jsonrpc", "success").Inc()

	return &envelope.Envelope{
		Protocol: envelope.ProtocolJSONRPC,
		Version:  c.cfg.VersionToken,
		JSONRPC: &envelope.JSONRPC{
			IV:      outEnv.IV,
			Message: outEnv.Message,
			HMAC:    outEnv.HMAC,
		},
	}
}

func (c *Connection) invokeHandler(ctx context.Context, payload string) (string, error) {
	if c.handler == nil {
		return "", fmt.Errorf("connection: no RPC handler configured")
	}
	return c.handler(ctx, c.username, payload)
}

func (c *Connection) srpErrorEnvelope(err error) *envelope.Envelope {
	var missing *srp.ErrMissingParam
	if errors.As(err, &missing) {
		return envelope.NewError(c.cfg.VersionToken, envelope.AuthMissingParam, missing.Field)
	}
	var invalid *srp.ErrInvalidPublicValue
	if errors.As(err, &invalid) {
		return envelope.NewError(c.cfg.VersionToken, envelope.InvalidMessage, invalid.Which)
	}
	if errors.Is(err, srp.ErrStageMismatch) {
		return nil
	}
	return envelope.NewError(c.cfg.VersionToken, envelope.InvalidMessage)
}
