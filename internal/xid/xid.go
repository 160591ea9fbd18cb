package xid

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// New returns "<prefix>-<base36 unix millis>-<random hex>". IDs with the same
// prefix sort by creation time to the millisecond.
func New(prefix string) string {
	stamp := strconv.FormatInt(time.Now().UTC().UnixMilli(), 36)
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return prefix + "-" + stamp
	}
	return prefix + "-" + stamp + "-" + hex.EncodeToString(buf[:])
}
