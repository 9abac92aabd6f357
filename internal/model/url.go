package model

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a user-supplied company URL: default to https,
// lowercase the host, strip a trailing slash. Invalid input is returned
// trimmed so lookups stay consistent either way.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	out := u.String()
	return strings.TrimRight(out, "/")
}

// DomainOf returns the bare host of a URL with any www. prefix removed,
// lowercased. Empty on unparseable input.
func DomainOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// CompanyNameFromURL derives a display name from a URL host: the label
// before the public suffix, title-cased (sage.com -> Sage).
func CompanyNameFromURL(raw string) string {
	domain := DomainOf(raw)
	if domain == "" {
		return ""
	}
	label := domain
	if i := strings.Index(domain, "."); i > 0 {
		label = domain[:i]
	}
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
