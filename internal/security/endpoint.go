package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateBackendURL checks that a configured backend URL is usable for
// server-side requests. The backend usually lives on the hotspot LAN,
// so private and loopback addresses are fine; only cloud metadata
// endpoints and malformed URLs are rejected.
func ValidateBackendURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL scheme must be http or https")
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	host := u.Hostname()

	// Block cloud metadata hostnames
	blocked := []string{"metadata.google.internal", "metadata.google"}
	for _, b := range blocked {
		if strings.EqualFold(host, b) {
			return fmt.Errorf("URL host %q is not allowed", host)
		}
	}

	// Block the link-local metadata address used by cloud providers
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return fmt.Errorf("link-local addresses are not allowed")
		}
		if ip.IsUnspecified() {
			return fmt.Errorf("unspecified addresses are not allowed")
		}
	}

	return nil
}
