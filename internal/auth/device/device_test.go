package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeMacUA   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxUA     = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	safariPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func TestParseUserAgent(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "Unknown Device", ParseUserAgent(""))
	})

	t.Run("desktop browser reads as browser on platform", func(t *testing.T) {
		name := ParseUserAgent(chromeMacUA)
		assert.Contains(t, name, "Chrome")
		assert.Contains(t, name, "on")
		assert.NotContains(t, name, "  ")
	})

	t.Run("mobile browser keeps the device platform", func(t *testing.T) {
		name := ParseUserAgent(safariPhoneUA)
		assert.Contains(t, name, "iPhone")
	})

	t.Run("garbage input still produces something displayable", func(t *testing.T) {
		name := ParseUserAgent("TicketBot/0.1")
		assert.NotEmpty(t, name)
		assert.Equal(t, name, strings.TrimSpace(name))
	})
}

func TestComputeFingerprint(t *testing.T) {
	svc := NewService(true)

	t.Run("disabled service yields no fingerprint", func(t *testing.T) {
		assert.Empty(t, NewService(false).ComputeFingerprint(chromeMacUA))
	})

	t.Run("deterministic sha256 hex", func(t *testing.T) {
		first := svc.ComputeFingerprint(chromeMacUA)
		assert.Equal(t, first, svc.ComputeFingerprint(chromeMacUA))
		assert.Len(t, first, 64)
	})

	t.Run("stable across minor browser updates", func(t *testing.T) {
		patch1 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36"
		patch2 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.224 Safari/537.36"
		assert.Equal(t, svc.ComputeFingerprint(patch1), svc.ComputeFingerprint(patch2))
	})

	t.Run("changes on a major browser upgrade", func(t *testing.T) {
		v120 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		v121 := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
		assert.NotEqual(t, svc.ComputeFingerprint(v120), svc.ComputeFingerprint(v121))
	})

	t.Run("distinguishes browsers and platforms", func(t *testing.T) {
		assert.NotEqual(t, svc.ComputeFingerprint(chromeMacUA), svc.ComputeFingerprint(firefoxUA))
		assert.NotEqual(t, svc.ComputeFingerprint(chromeMacUA), svc.ComputeFingerprint(safariPhoneUA))
	})
}
