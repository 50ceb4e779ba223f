package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTokenRequired = errors.New("authorization required")
	ErrInvalidToken  = errors.New("invalid token")
)

// Service validates the static admin tokens configured for the upload service.
type Service struct {
	digests    [][sha256.Size]byte
	headerName string
}

// NewService constructs an auth service accepting any of the supplied tokens. Blank entries are ignored.
func NewService(tokens []string) *Service {
	s := &Service{headerName: "Authorization"}
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		s.digests = append(s.digests, sha256.Sum256([]byte(tok)))
	}
	return s
}

// Enabled reports whether at least one token is configured.
func (s *Service) Enabled() bool {
	return s != nil && len(s.digests) > 0
}

// ValidateToken returns the index of the matching token. Every configured
// token is compared so the time taken does not depend on which one matched.
func (s *Service) ValidateToken(token string) (int, error) {
	if token == "" {
		return -1, ErrTokenRequired
	}
	sum := sha256.Sum256([]byte(token))
	match := -1
	for i, d := range s.digests {
		if subtle.ConstantTimeCompare(sum[:], d[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return -1, ErrInvalidToken
	}
	return match, nil
}

// GenerateToken returns a random token suitable for admin_tokens.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
