package srp

import "math/big"

// Group is a safe-prime group (N, g) used for SRP-6a exponentiation. Size is
// the byte length of N, used for RFC 5054-style zero-padding of A/B/s in the
// transcript hash.
type Group struct {
	N    *big.Int
	G    *big.Int
	Size int
}

// group2048Hex is the RFC 5054 2048-bit safe prime, reproduced verbatim
// because SRP interoperability depends on using the client's exact group.
const group2048Hex = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

// DefaultGroup returns the 2048-bit RFC 5054 group with generator 2, the
// fixed safe-prime group and generator this engine negotiates with the
// client (spec §4.2: "a fixed safe-prime group and generator chosen to
// match the client").
func DefaultGroup() *Group {
	n, ok := new(big.Int).SetString(group2048Hex, 16)
	if !ok {
		panic("srp: invalid embedded group constant")
	}
	return &Group{
		N:    n,
		G:    big.NewInt(2),
		Size: len(n.Bytes()),
	}
}

// pad left-pads x's big-endian bytes to n bytes, the RFC 5054 convention for
// computing u = H(PAD(A) || PAD(B)) and hashing N/s/A/B into a transcript.
func pad(x *big.Int, n int) []byte {
	b := x.Bytes()
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
