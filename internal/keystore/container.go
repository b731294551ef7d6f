// Package keystore persists the long-term KeyContainer a paired client
// reconnects with, at one of the security tiers spec.md §4.4 defines.
package keystore

import "encoding/xml"

// Container is the persisted record of a paired client: its long-term
// symmetric key, claimed identity, display label, and expiry. The XML
// element order is a compatibility anchor (spec.md §9) and must not change.
type Container struct {
	XMLName     xml.Name `xml:"KeyContainerClass"`
	Key         string   `xml:"Key"`
	AuthExpires string   `xml:"AuthExpires"`
	Username    string   `xml:"Username"`
	ClientName  string   `xml:"ClientName"`
}

// ExploitMarkerKey is the SHA-256 hash of the single ASCII character '0',
// hex-encoded. A Container whose Key equals this value is evidence of a
// prior exploit (a known-bad key a compromised client may try to plant)
// and must never be treated as a valid stored key.
const ExploitMarkerKey = "5feceb66ffc86f38d952786c6d696c79c2dbc239dd4e91b46729d73a27fb57e9"

// IsExploitMarker reports whether key is the known-compromised sentinel.
func IsExploitMarker(key string) bool {
	return key == ExploitMarkerKey
}
