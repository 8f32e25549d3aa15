// Package pkce generates PKCE code verifier and challenge pairs
// following RFC 7636 for the OAuth 2.0 authorization code flow.
// The verifier binds the authorization code to this process so that an
// intercepted code cannot be exchanged by anyone else.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// minVerifierLength is the minimum accepted verifier length. RFC 7636
// allows 43-128 characters; this implementation regenerates until the
// alphanumeric-only verifier reaches at least 50.
const minVerifierLength = 50

// verifierRandomBytes is the number of random bytes encoded per attempt.
const verifierRandomBytes = 44

// Codes holds a PKCE code verifier and its derived challenge.
type Codes struct {
	// CodeVerifier is the random secret kept by this client.
	CodeVerifier string
	// CodeChallenge is the S256 transformation of the verifier sent in the
	// authorization request.
	CodeChallenge string
}

var (
	processOnce  sync.Once
	processCodes *Codes
	processErr   error
)

// ProcessCodes returns the verifier/challenge pair generated once per
// process lifetime. The pair is re-derived only on process restart.
func ProcessCodes() (*Codes, error) {
	processOnce.Do(func() {
		processCodes, processErr = Generate()
	})
	return processCodes, processErr
}

// Generate produces a fresh PKCE code verifier and challenge pair.
//
// Returns:
//   - *Codes: The verifier and challenge
//   - error: An error if the random source fails, nil otherwise
func Generate() (*Codes, error) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return &Codes{
		CodeVerifier:  verifier,
		CodeChallenge: CodeChallengeS256(verifier),
	}, nil
}

// GenerateCodeVerifier creates a cryptographically random alphanumeric
// string. It base64-encodes 44 random bytes, strips every character that
// is not alphanumeric, and regenerates until the result is at least 50
// characters long.
func GenerateCodeVerifier() (string, error) {
	for {
		buf := make([]byte, verifierRandomBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		verifier := stripNonAlphanumeric(base64.StdEncoding.EncodeToString(buf))
		if len(verifier) >= minVerifierLength {
			return verifier, nil
		}
	}
}

// CodeChallengeS256 computes the S256 code challenge for a verifier:
// SHA-256 over the verifier bytes, URL-safe base64 without padding.
func CodeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
}

func stripNonAlphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, s)
}
