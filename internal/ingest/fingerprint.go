package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Fingerprint identifies a message by sender, text and minute of delivery, so
// the same notification delivered twice maps to the same value. Whitespace and
// sender case are normalised. A message without timestamp hashes its content
// only; Pipeline.Process stamps such messages before fingerprinting them.
func Fingerprint(msg Message) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(msg.Sender))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(strings.Fields(msg.Text), " ")))
	h.Write([]byte{0})
	if !msg.Timestamp.IsZero() {
		h.Write([]byte(msg.Timestamp.UTC().Truncate(time.Minute).Format(time.RFC3339)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
