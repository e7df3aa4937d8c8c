package crawler

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/fabfab/ragcore/internal/apperr"
)

// GuardSSRF rejects URLs that resolve to localhost, or to a literal
// loopback/private/link-local IPv4 or IPv6 address (spec §4.F). Hostnames
// that do not parse as IP literals are allowed — DNS-level protection is
// out of scope per spec.
func GuardSSRF(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return apperr.Validation("malformed URL", err)
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return apperr.Validation("refusing to fetch localhost", nil)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}

	if ip4 := ip.To4(); ip4 != nil {
		if !validOctets(host) {
			return apperr.Validation("malformed IPv4 address", nil)
		}
		for _, blocked := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "169.254.0.0/16"} {
			_, block, _ := net.ParseCIDR(blocked)
			if block.Contains(ip4) {
				return apperr.Validation("refusing to fetch private/loopback IPv4 address", nil)
			}
		}
		return nil
	}

	if ip.Equal(net.IPv6loopback) {
		return apperr.Validation("refusing to fetch IPv6 loopback address", nil)
	}
	for _, blocked := range []string{"fe80::/10", "fc00::/7"} {
		_, block, _ := net.ParseCIDR(blocked)
		if block.Contains(ip) {
			return apperr.Validation("refusing to fetch private/link-local IPv6 address", nil)
		}
	}
	return nil
}

// validOctets verifies each dotted-decimal octet parses as an integer in
// 0-255; net.ParseIP already guarantees this, but we revalidate explicitly
// per spec's malformed-IP rejection requirement.
func validOctets(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}
