// Package idgen generates attendance record IDs.
//
// IDs are a short type prefix followed by a nanoid drawn from an
// alphanumeric alphabet, so they are safe in URLs, NATS subjects and
// JSONL exports without escaping.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RecordPrefix marks attendance record IDs.
const RecordPrefix = "att-"

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 12
)

// NewRecordID returns a fresh attendance record ID.
func NewRecordID() (string, error) {
	return WithPrefix(RecordPrefix)
}

// WithPrefix returns a fresh ID carrying prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// IsRecordID reports whether s looks like an ID minted by NewRecordID.
func IsRecordID(s string) bool {
	if len(s) != len(RecordPrefix)+length || s[:len(RecordPrefix)] != RecordPrefix {
		return false
	}
	for _, c := range s[len(RecordPrefix):] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
