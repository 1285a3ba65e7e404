// Package fingerprint computes content-addressable identities for file
// bytes. The digest is content-only: name, mime type and timestamps never
// feed into it, so identical bytes hash identically everywhere.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-256 digest of data. Pure function, no
// I/O. SHA-256 is chosen for negligible collision probability at catalog
// scale, not as a security boundary.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
