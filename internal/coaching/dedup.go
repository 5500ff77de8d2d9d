package coaching

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SyntheticMessageID builds a stable dedup key for emails that arrive
// without a Message-ID header, hashing sender, subject and the first 500
// bytes of the body so the same email is never processed twice.
func SyntheticMessageID(fromEmail, subject, body string) string {
	if len(body) > 500 {
		body = body[:500]
	}
	raw := fmt.Sprintf("%s|%s|%s", fromEmail, subject, body)
	sum := sha256.Sum256([]byte(raw))
	return "synthetic-" + hex.EncodeToString(sum[:])[:24]
}
