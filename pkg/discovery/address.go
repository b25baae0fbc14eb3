package discovery

import (
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GenerateInstanceName returns a random instance name for hosts that do
// not configure one.
func GenerateInstanceName() string {
	id := uuid.New()
	return "ossl-echo-" + strings.ToUpper(id.String()[:8])
}

// JoinHostPort formats ip and port as a dialable address.
func JoinHostPort(ip net.IP, port int) string {
	return net.JoinHostPort(ip.String(), strconv.Itoa(port))
}

// SortIPsByPreference sorts IP addresses by reachability.
// Priority order (highest to lowest):
//  1. Global unicast addresses
//  2. Private IPv4 and IPv6 unique local addresses (fc00::/7)
//  3. Link-local addresses
//  4. Loopback, then everything else
//
// The input slice is not modified.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})

	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	if ip.To16() == nil {
		return 99 // Invalid
	}

	switch {
	case ip.IsLoopback():
		return 80
	case ip.IsMulticast():
		return 90
	case ip.IsPrivate():
		return 1
	case ip.IsGlobalUnicast():
		return 0
	case ip.IsLinkLocalUnicast():
		// Link-local IPv6 needs a zone the resolver does not carry.
		return 2
	default:
		return 10
	}
}

// FilterIPv6 returns only IPv6 addresses from the slice.
func FilterIPv6(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() == nil && ip.To16() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// FilterIPv4 returns only IPv4 addresses from the slice.
func FilterIPv4(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			result = append(result, ip)
		}
	}
	return result
}
