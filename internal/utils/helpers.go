package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

// StrOrEmpty dereferences p, returning "" for nil.
func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StrPtr returns nil for blank strings so JSON renders null.
func StrPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// IsBlank reports whether p is nil or only whitespace.
func IsBlank(p *string) bool {
	return p == nil || strings.TrimSpace(*p) == ""
}

// FirstNonBlank returns the first pointer that is not blank.
func FirstNonBlank(ps ...*string) *string {
	for _, p := range ps {
		if !IsBlank(p) {
			return p
		}
	}
	return nil
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// ParseYMD parses an ISO date into midnight UTC.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// NowISO is the timestamp format stored in TEXT columns and canonical documents.
func NowISO() string {
	return FormatISO(time.Now())
}

// FormatISO renders t as RFC3339 with millisecond precision in UTC.
func FormatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// SHA256Hex hashes raw input bytes.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
