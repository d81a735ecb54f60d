package api

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

// Thread ids share the 12-byte, 24 hex character shape of the document ids
// the browser client already holds.
const threadIDBytes = 12

var threadIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// NewThreadID generates a new random thread id.
func NewThreadID() string {
	b := make([]byte, threadIDBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// ValidateThreadID checks whether the given string is a well-formed thread id
// (24 lowercase hex characters).
func ValidateThreadID(id string) bool {
	return threadIDPattern.MatchString(id)
}
