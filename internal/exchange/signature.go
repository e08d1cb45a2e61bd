package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

// Overridable time sources, pinned in tests.
var (
	timeNowMillis = func() int64 { return time.Now().UnixMilli() }
	timeNow       = time.Now
)

var (
	nonceMu   sync.Mutex
	lastNonce int64
)

// NextNonce returns the current unix millisecond timestamp as a string.
// The exchange rejects nonce reuse, so ties with the previous value are
// bumped by one.
func NextNonce() string {
	nonceMu.Lock()
	defer nonceMu.Unlock()
	n := timeNowMillis()
	if n <= lastNonce {
		n = lastNonce + 1
	}
	lastNonce = n
	return strconv.FormatInt(n, 10)
}

// OTPCode derives the current one-time password from a base32 TOTP seed.
// For a fixed seed and timestamp the code is deterministic.
func OTPCode(otpSecret string) (string, error) {
	code, err := totp.GenerateCode(otpSecret, timeNow())
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return code, nil
}

// EncodeBody url-encodes the private request body. Key order is
// deterministic (sorted), which keeps signatures reproducible.
func EncodeBody(nonce, code string) string {
	v := url.Values{}
	v.Set("nonce", nonce)
	v.Set("otp", code)
	return v.Encode()
}

// Sign computes the private-API request signature:
//
//	base64( HMAC-SHA512( base64decode(secret), path || SHA256(nonce || body) ) )
//
// where path is the endpoint path without the API link prefix and body is
// the url-encoded form data that will be sent.
func Sign(apiSecret, endpointPath, nonce, body string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	digest := sha256.Sum256([]byte(nonce + body))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(endpointPath))
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
