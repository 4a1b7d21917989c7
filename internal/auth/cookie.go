package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CookieName is the session cookie carrying the signed user ID.
const CookieName = "user_id"

var (
	ErrMalformed    = errors.New("invalid cookie format")
	ErrBadSignature = errors.New("invalid signature")
)

// Signer signs and verifies cookie values with an HMAC-SHA256 key.
type Signer struct {
	key []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// Sign creates a signed cookie value in the format "value|signature".
func (s *Signer) Sign(value string) string {
	return fmt.Sprintf("%s|%s",
		base64.URLEncoding.EncodeToString([]byte(value)),
		base64.URLEncoding.EncodeToString(s.mac(value)))
}

// Verify checks a signed value and returns the original value.
func (s *Signer) Verify(signedValue string) (string, error) {
	parts := strings.Split(signedValue, "|")
	if len(parts) != 2 {
		return "", ErrMalformed
	}

	valueBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: value encoding", ErrMalformed)
	}
	signature, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: signature encoding", ErrMalformed)
	}

	value := string(valueBytes)
	if !hmac.Equal(signature, s.mac(value)) {
		return "", ErrBadSignature
	}
	return value, nil
}

// SessionCookie returns the cookie that authenticates userID.
func (s *Signer) SessionCookie(userID string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    s.Sign(userID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// UserID extracts and verifies the session cookie of r.
func (s *Signer) UserID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	id, err := s.Verify(cookie.Value)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrMalformed
	}
	return id, nil
}

func (s *Signer) mac(value string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}
