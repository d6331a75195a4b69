package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultSignedURLTTL = 30 * time.Minute

var (
	// ErrTokenInvalid covers malformed or tampered download tokens.
	ErrTokenInvalid = errors.New("invalid download token")
	// ErrTokenExpired marks a structurally valid token past its deadline.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner creates and validates signed download tokens. Tokens
// are docID.expiry.path.signature with an HMAC-SHA256 signature, so a
// download link can be handed out without granting API credentials.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

func (s *SignedURLSigner) sign(docID, unixTS, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", docID, unixTS, encodedPath)
	return hex.EncodeToString(mac.Sum(nil))
}

// Generate returns a signed token referencing the document and storage path.
func (s *SignedURLSigner) Generate(docID, storagePath string) (string, time.Time, error) {
	if docID == "" || storagePath == "" {
		return "", time.Time{}, fmt.Errorf("docID and storagePath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := time.Now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(storagePath))

	token := strings.Join([]string{docID, ts, encodedPath, s.sign(docID, ts, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded metadata. The
// signature is checked before the deadline so a tampered expiry cannot
// extend a token's life.
func (s *SignedURLSigner) Parse(token string) (string, string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	docID, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(docID, ts, encodedPath)), []byte(signature)) {
		return "", "", time.Time{}, ErrTokenInvalid
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	expiresAt := time.Unix(expUnix, 0)
	if time.Now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	return docID, string(rawPath), expiresAt, nil
}
