package validation

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// ValidateProjectPath checks a folder configured relative to the project root.
// It must stay inside the root once cleaned.
func ValidateProjectPath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute path not allowed: %s", path)
	}
	if !filepath.IsLocal(filepath.Clean(path)) {
		return fmt.Errorf("path traversal detected: %s", path)
	}
	for _, char := range []string{";", "&", "|", "$", "`", "<", ">", "\x00"} {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}
	return nil
}

// HostAllowed reports whether a request Host header may be served by the dev
// server. Loopback names, IP literals and the explicitly allowed hosts pass.
func HostAllowed(hostHeader string, allowed ...string) bool {
	host := hostHeader
	if h, _, err := net.SplitHostPort(hostHeader); err == nil {
		host = h
	}
	host = strings.Trim(strings.ToLower(host), "[]")
	if host == "" {
		return false
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if net.ParseIP(host) != nil {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}
