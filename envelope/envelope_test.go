package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	src := &Envelope{
		Protocol: ProtocolSetup,
		Version:  42,
		Features: []string{"fA", "fB"},
		SRP: &SRP{
			Stage:         StageIdentifyToServer,
			I:             "alice",
			A:             "abc123",
			SecurityLevel: 2,
		},
		ClientDisplayName: "Browser",
	}

	raw, err := Encode(src)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, src.Protocol, got.Protocol)
	assert.Equal(t, src.Version, got.Version)
	assert.Equal(t, src.Features, got.Features)
	require.NotNil(t, got.SRP)
	assert.Equal(t, src.SRP.Stage, got.SRP.Stage)
	assert.Equal(t, src.SRP.I, got.SRP.I)
	assert.Nil(t, got.Key)
	assert.Nil(t, got.JSONRPC)
}

func TestDecodeUnknownFieldsIgnored(t *testing.T) {
	raw := []byte(`{"protocol":"setup","version":1,"somethingNew":{"x":1}}`)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ProtocolSetup, got.Protocol)
}

func TestDecodeMalformedIsParseError(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestNewErrorEnvelope(t *testing.T) {
	env := NewError(7, AuthFailed, "Keys do not match")
	assert.Equal(t, ProtocolError, env.Protocol)
	require.NotNil(t, env.Error)
	assert.Equal(t, AuthFailed, env.Error.Code)
	assert.Equal(t, []string{"Keys do not match"}, env.Error.MessageParams)
}

func TestVersionToken(t *testing.T) {
	v := NewVersion(1, 2, 3)
	token := v.Token()
	// [build=3, minor=2, major=1, 0] little-endian -> 0x00010203
	assert.Equal(t, int32(0x00010203), token)
}
