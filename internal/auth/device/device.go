// Package device derives human-readable device names and stable fingerprints
// from User-Agent strings. Login events carry both so a holder can recognize
// their own sessions.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes device fingerprints. Disabled, it returns empty
// fingerprints so callers can treat the feature as absent.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent renders a User-Agent as "<browser> on <platform/os>".
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)
	name, _ := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}

	where := describePlatform(ua)
	if where == "" {
		where = "Unknown OS"
	}

	return collapseSpaces(name + " on " + where)
}

func describePlatform(ua *useragent.UserAgent) string {
	platform := strings.TrimSpace(ua.Platform())
	os := strings.TrimSpace(ua.OS())

	switch {
	case platform == "" && os == "":
		return ""
	case platform == "" || platform == os || strings.Contains(os, platform):
		return os
	case os == "":
		return platform
	default:
		return platform + " " + os
	}
}

// ComputeFingerprint hashes the browser identity with only its major
// version, so routine browser updates keep the same fingerprint while a
// different browser or OS produces a new one.
func (s *Service) ComputeFingerprint(raw string) string {
	if !s.enabled {
		return ""
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()
	major := version
	if i := strings.IndexByte(version, '.'); i >= 0 {
		major = version[:i]
	}

	key := strings.Join([]string{name, major, ua.OS(), ua.Platform()}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
