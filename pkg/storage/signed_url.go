package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token validation failures are deliberately indistinct so callers can map
// them all to a single unauthorized response.
var ErrInvalidToken = errors.New("invalid download token")

// SignedURLSigner mints and verifies HMAC-signed download tokens. A token
// embeds the owning resource ID, the stored file path and an expiry, so
// downloads need no session and no database lookup.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer. A non-positive TTL falls back to
// 24 hours.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate returns a signed token for the resource and file path along
// with its expiry.
func (s *SignedURLSigner) Generate(resourceID, relPath string) (string, time.Time, error) {
	if resourceID == "" || relPath == "" {
		return "", time.Time{}, errors.New("resource ID and path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret is not configured")
	}

	expiresAt := time.Now().Add(s.ttl)
	path := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{resourceID, exp, path, s.sign(resourceID, exp, path)}, ".")
	return token, expiresAt, nil
}

// Parse verifies a token and returns its embedded resource ID, file path
// and expiry. With allowExpired set the expiry check is skipped, which
// cleanup routines use to resolve paths for stale tokens.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrInvalidToken
	}
	resourceID, exp, path, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(resourceID, exp, path)), []byte(signature)) {
		return "", "", time.Time{}, ErrInvalidToken
	}

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	expiresAt := time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, ErrInvalidToken
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(path)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	return resourceID, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(resourceID, exp, path string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", resourceID, exp, path)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
