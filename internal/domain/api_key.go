package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"
)

// collectionNameRe is the plain SQL identifier rule collection tables are
// created under.
var collectionNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MaxCollectionNameLen is the longest accepted collection name.
const MaxCollectionNameLen = 128

// CredentialGrant authorizes one token to write to one collection.
type CredentialGrant struct {
	TokenHash  string // SHA-256 of raw token; raw token is never stored
	KeyPrefix  string // see KeyPrefix
	Collection string
	CreatedAt  time.Time
}

// GrantRequest holds parameters for granting a token access to a collection.
type GrantRequest struct {
	Token      string
	Collection string
}

// Validate checks that the request is well-formed.
func (r *GrantRequest) Validate() error {
	if r.Token == "" {
		return ErrValidation("token is required")
	}
	return ValidateCollectionName(r.Collection)
}

// ValidateCollectionName checks that name can be used as a collection table:
// at most 128 characters matching [a-zA-Z_][a-zA-Z0-9_]*.
func ValidateCollectionName(name string) error {
	if name == "" {
		return ErrValidation("collection is required")
	}
	if len(name) > MaxCollectionNameLen {
		return ErrValidation("collection must be at most %d characters", MaxCollectionNameLen)
	}
	if !collectionNameRe.MatchString(name) {
		return ErrValidation("collection %q must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	return nil
}

// HashToken returns the SHA-256 hex digest of a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// keyPrefixLen is how much of a token is kept for identification.
const keyPrefixLen = 8

// KeyPrefix returns the identifying prefix of a raw token: its first 8
// characters. Tokens of 8 characters or fewer would be revealed whole, so
// they are identified by "h:" plus the first 8 hex digits of their hash.
func KeyPrefix(token string) string {
	if len(token) <= keyPrefixLen {
		return "h:" + HashToken(token)[:keyPrefixLen]
	}
	return token[:keyPrefixLen]
}
