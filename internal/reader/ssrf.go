package reader

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"syscall"
)

// blockedRanges covers loopback, RFC1918 private space, link-local
// (including the cloud metadata service at 169.254.169.254), CGNAT,
// and their IPv6 equivalents.
var blockedRanges = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Guard rejects fetches that would reach internal or private network
// addresses on the caller's behalf.
type Guard struct{}

// NewGuard creates an address guard.
func NewGuard() *Guard { return &Guard{} }

// Check resolves the URL's host and fails if any resolved address
// falls in a blocked range. It runs before any network request.
func (g *Guard) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, addr := range addrs {
		if err := checkAddr(addr); err != nil {
			return err
		}
	}
	return nil
}

// Control re-checks the address at dial time, which closes the
// resolve-then-redirect hole: every connection in a redirect chain
// passes through here.
func (g *Guard) Control(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	return checkAddr(addr)
}

func checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	for _, p := range blockedRanges {
		if p.Contains(addr) {
			return fmt.Errorf("address %s is not allowed", addr)
		}
	}
	return nil
}
