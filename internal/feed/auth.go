package feed

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Credentials holds the license key and shared secret for signing the
// session handshake.
type Credentials struct {
	KeyID  string
	Secret string
}

// SignHandshake generates authentication headers for the session dial.
// Message format: timestamp_ms + path, signed with HMAC-SHA256.
func (c Credentials) SignHandshake(path string) http.Header {
	timestampMs := time.Now().UnixMilli()

	header := http.Header{}
	header.Set("FEED-ACCESS-KEY", c.KeyID)
	header.Set("FEED-ACCESS-TIMESTAMP", fmt.Sprintf("%d", timestampMs))
	header.Set("FEED-ACCESS-SIGNATURE", c.sign(timestampMs, path))
	return header
}

func (c Credentials) sign(timestampMs int64, path string) string {
	mac := hmac.New(sha256.New, []byte(c.Secret))
	fmt.Fprintf(mac, "%d%s", timestampMs, path)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
