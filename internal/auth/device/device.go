// Package device turns User-Agent strings into short labels for audit records.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent returns a display name like "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	if ua.Mobile() && !strings.Contains(os, ua.Platform()) {
		os = strings.TrimSpace(ua.Platform() + " " + os)
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// IsBot reports whether the agent identifies as a crawler.
func IsBot(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return useragent.New(userAgent).Bot()
}
