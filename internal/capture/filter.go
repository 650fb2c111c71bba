package capture

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/runnerr0/dwell/internal/config"
)

// Filter turns tab URLs into the hostnames that are timed. URLs that do
// not parse, use another scheme, or hit an exclusion rule yield no domain.
type Filter struct {
	schemes map[string]bool
	allow   []string
	deny    []string
	denyRe  []*regexp.Regexp
}

// NewFilter compiles the capture rules. Invalid regexes are an error so a
// typo in the config does not silently disable an exclusion.
func NewFilter(cfg config.CaptureConfig) (*Filter, error) {
	f := &Filter{schemes: make(map[string]bool)}

	schemes := cfg.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	for _, s := range schemes {
		f.schemes[strings.ToLower(s)] = true
	}

	for _, d := range cfg.AllowlistDomains {
		f.allow = append(f.allow, normalizeHost(d))
	}

	deny := cfg.DenylistDomains
	patterns := cfg.DenylistRegex
	if cfg.ExcludeSensitive {
		deny = append(append([]string{}, deny...), config.DefaultDenylistDomains()...)
		patterns = append(append([]string{}, patterns...), config.DefaultDenylistRegex()...)
	}
	for _, d := range deny {
		f.deny = append(f.deny, normalizeHost(d))
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile denylist regex %q: %w", p, err)
		}
		f.denyRe = append(f.denyRe, re)
	}

	return f, nil
}

// Resolve returns the hostname to time for rawURL.
func (f *Filter) Resolve(rawURL string) (string, bool) {
	host, ok := f.hostOf(rawURL)
	if !ok {
		return "", false
	}
	if f.IsExcluded(host) {
		return "", false
	}
	return host, true
}

func (f *Filter) hostOf(rawURL string) (string, bool) {
	if strings.TrimSpace(rawURL) == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if !f.schemes[strings.ToLower(u.Scheme)] {
		return "", false
	}
	host := normalizeHost(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

// IsExcluded checks a hostname against the allowlist and exclusion rules.
func (f *Filter) IsExcluded(host string) bool {
	host = normalizeHost(host)
	if len(f.allow) > 0 && !matchesAny(host, f.allow) {
		return true
	}
	if matchesAny(host, f.deny) {
		return true
	}
	for _, re := range f.denyRe {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// matchesAny reports whether host equals or is a subdomain of any entry.
func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
