package httpapi

import (
	"regexp"
	"strconv"

	"github.com/rezkam/torque/internal/domain"
)

// urlPattern is a liberal "does this look like a URL" matcher, ported from
// the original's colander-derived pattern: it accepts any scheme-prefixed or
// www./domain-prefixed token followed by non-whitespace, balancing nested
// parens. It is deliberately permissive: the webhook URL is only ever used
// as an HTTP request target, never parsed for routing, so over-accepting
// costs nothing a failed delivery attempt wouldn't already catch.
var urlPattern = regexp.MustCompile(`(?i)\b((?:[a-z][\w-]+:(?:/{1,3}|[a-z0-9%])|www\d{0,3}[.]|[a-z0-9.\-]+[.][a-z]{2,4}/)(?:[^\s()<>]+|\([^\s()<>]+\))+(?:\([^\s()<>]+\)|[^\s` + "`" + `!()\[\]{};:'".,<>?]))`)

// validateURL reports whether raw is non-empty and contains a match for
// urlPattern. The scheme is not restricted to HTTP(S), and the match need
// not cover the whole string.
func validateURL(raw string) (string, error) {
	if raw == "" || !urlPattern.MatchString(raw) {
		return "", domain.ErrInvalidURL
	}
	return raw, nil
}

// validateTimeout parses raw as a non-negative integer number of seconds,
// falling back to def when raw is empty.
func validateTimeout(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	timeout, err := strconv.Atoi(raw)
	if err != nil || timeout < 0 {
		return 0, domain.ErrInvalidTimeout
	}
	return timeout, nil
}
