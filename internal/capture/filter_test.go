package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/config"
)

func defaultFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(config.DefaultConfig().Capture)
	require.NoError(t, err)
	return f
}

func TestResolve_ExtractsHostname(t *testing.T) {
	f := defaultFilter(t)

	cases := map[string]string{
		"https://example.com/article":          "example.com",
		"http://Example.COM:8080/x?y=1":        "example.com",
		"https://sub.domain.example.org/#frag": "sub.domain.example.org",
		"https://example.com./trailing-dot":    "example.com",
		"https://[::1]:8443/":                  "::1",
	}
	for in, want := range cases {
		got, ok := f.Resolve(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestResolve_RejectsUnresolvable(t *testing.T) {
	f := defaultFilter(t)

	for _, in := range []string{
		"",
		"chrome://extensions",
		"about:blank",
		"file:///etc/hosts",
		"chrome-extension://abcdef/popup.html",
		"not a url",
		"https://",
		"://broken",
	} {
		_, ok := f.Resolve(in)
		assert.False(t, ok, in)
	}
}

func TestResolve_Denylist(t *testing.T) {
	cfg := config.DefaultConfig().Capture
	cfg.DenylistDomains = []string{"secret.org"}
	cfg.DenylistRegex = []string{`^internal\.`}
	f, err := NewFilter(cfg)
	require.NoError(t, err)

	_, ok := f.Resolve("https://secret.org/page")
	assert.False(t, ok)
	_, ok = f.Resolve("https://www.secret.org/page")
	assert.False(t, ok, "subdomains of a listed domain are excluded")
	_, ok = f.Resolve("https://notsecret.org/page")
	assert.True(t, ok, "suffix match must respect label boundaries")
	_, ok = f.Resolve("https://internal.corp.net/")
	assert.False(t, ok)
}

func TestResolve_ExcludeSensitive(t *testing.T) {
	cfg := config.DefaultConfig().Capture
	f, err := NewFilter(cfg)
	require.NoError(t, err)
	_, ok := f.Resolve("https://www.chase.com/")
	assert.True(t, ok, "sensitive list is opt-in")

	cfg.ExcludeSensitive = true
	f, err = NewFilter(cfg)
	require.NoError(t, err)
	_, ok = f.Resolve("https://www.chase.com/")
	assert.False(t, ok)
	_, ok = f.Resolve("https://mail.example.com/")
	assert.False(t, ok)
}

func TestResolve_Allowlist(t *testing.T) {
	cfg := config.DefaultConfig().Capture
	cfg.AllowlistDomains = []string{"golang.org"}
	f, err := NewFilter(cfg)
	require.NoError(t, err)

	host, ok := f.Resolve("https://pkg.golang.org/x")
	assert.True(t, ok)
	assert.Equal(t, "pkg.golang.org", host)

	_, ok = f.Resolve("https://example.com/")
	assert.False(t, ok)
}

func TestNewFilter_InvalidRegex(t *testing.T) {
	cfg := config.DefaultConfig().Capture
	cfg.DenylistRegex = []string{"("}
	_, err := NewFilter(cfg)
	assert.Error(t, err)
}
