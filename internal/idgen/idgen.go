// Package idgen mints the random identifiers used across the platform.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// WithPrefix returns a fresh identifier: the prefix followed by 24 hex
// characters (12 random bytes). Every entity carries its own prefix
// ("usr_", "tsk_", "dep_", "wdr_", "ntf_", ...) so an id names its table
// on sight in logs and admin tooling.
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}
