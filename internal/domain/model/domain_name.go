package model

import "strings"

// NormalizeDomain reduces a raw user-supplied host string to its canonical
// comparison key. Every inbound domain goes through this before any lookup or
// insert, so "HTTPS://WWW.Example.com:8443/path" and "example.com" collide on
// the same key. Pure; returns an empty string for degenerate input.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	if i := strings.Index(d, "/"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, "?"); i >= 0 {
		d = d[:i]
	}
	d = stripPort(d)
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSpace(d)
}

// stripPort removes a trailing ":<digits>" only. Hosts may legitimately
// contain colons (bracketed IPv6 literals), so a bare LastIndex cut would eat
// part of the address and re-normalizing would keep shrinking the string.
func stripPort(d string) string {
	i := strings.LastIndex(d, ":")
	if i < 0 || i == len(d)-1 {
		return d
	}
	for _, c := range d[i+1:] {
		if c < '0' || c > '9' {
			return d
		}
	}
	return d[:i]
}
