// Package idhash derives deterministic record identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ComputeSnapshotID computes a deterministic snapshot id using SHA256.
// Formula: SHA256(upper(symbol)|observed_at_unix_ms)
// Returns hex-encoded hash (64 characters).
func ComputeSnapshotID(symbol string, observedAt time.Time) string {
	data := fmt.Sprintf("%s|%d",
		strings.ToUpper(strings.TrimSpace(symbol)),
		observedAt.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
