package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "providerOrderID|paymentID".
func Sign(secret, providerOrderID, paymentID string) string {
	return SignBody(secret, []byte(providerOrderID+"|"+paymentID))
}

func Verify(secret, providerOrderID, paymentID, signature string) bool {
	return VerifyBody(secret, []byte(providerOrderID+"|"+paymentID), signature)
}

func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBody compares in constant time. An empty secret never verifies.
func VerifyBody(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(SignBody(secret, body)), []byte(signature))
}
