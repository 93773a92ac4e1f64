package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

const (
	EnvelopeVersion = "1.0"

	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"

	signaturePrefix = "sha256="
)

// Envelope is the JSON body POSTed to every subscriber.
type Envelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Version   string `json:"version"`
}

func NewEnvelope(event string, data any, now time.Time) Envelope {
	return Envelope{
		Event:     event,
		Data:      data,
		Timestamp: now.UnixMilli(),
		Version:   EnvelopeVersion,
	}
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Sign returns "sha256=<hex>" of an HMAC-SHA256 over body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header in constant time.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
