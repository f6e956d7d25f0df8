// Package validation holds the input checks applied before remixure hands a
// value to the operating system: URLs passed to the browser opener or the
// inspection command, configured project paths, and Host headers seen by the
// dev server.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// shellMeta are characters that must never reach a command line through a URL.
var shellMeta = []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", "\n", "\r", "\t", "\x00"}

// ValidateURL validates URLs handed to the browser opener and the inspection command.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	for _, char := range shellMeta {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains dangerous character: %q", char)
		}
	}

	if strings.Contains(rawURL, " ") {
		return fmt.Errorf("URL contains spaces")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

// BrowserURL builds the URL opened in the browser once the dev server listens.
// Wildcard listen addresses are replaced by localhost.
func BrowserURL(https bool, host string, port int, app string) string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + strings.TrimPrefix(app, "/"),
	}
	return u.String()
}
