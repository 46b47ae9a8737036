package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/arloliu/regionlb/types"
)

// SystemLookuper resolves hosts with the operating system resolver.
//
// Lookups inherit whatever timeout the host environment's resolver enforces,
// further bounded by the caller's context.
type SystemLookuper struct {
	resolver *net.Resolver
}

var _ Lookuper = (*SystemLookuper)(nil)

// NewSystemLookuper creates a Lookuper backed by net.DefaultResolver.
func NewSystemLookuper() *SystemLookuper {
	return &SystemLookuper{resolver: net.DefaultResolver}
}

// LookupHost resolves host to its addresses.
func (l *SystemLookuper) LookupHost(ctx context.Context, host string) ([]string, error) {
	return l.resolver.LookupHost(ctx, host)
}

// DNSLookuper queries explicit nameservers for A and AAAA records.
//
// It is meant for deployments where the global endpoint must be resolved
// against a specific DNS server rather than the system configuration, for
// example to bypass a local caching resolver that ignores record TTLs.
type DNSLookuper struct {
	client  *dns.Client
	servers []string
}

var _ Lookuper = (*DNSLookuper)(nil)

// DNSOption configures a DNSLookuper.
type DNSOption func(*DNSLookuper)

// WithDNSTimeout sets the per-exchange timeout.
//
// Parameters:
//   - d: Timeout for one query/response exchange
//
// Returns:
//   - DNSOption: Configuration option
func WithDNSTimeout(d time.Duration) DNSOption {
	return func(l *DNSLookuper) {
		l.client.Timeout = d
	}
}

// WithDNSNet sets the transport ("udp", "tcp" or "tcp-tls").
//
// Parameters:
//   - network: Transport name understood by miekg/dns
//
// Returns:
//   - DNSOption: Configuration option
func WithDNSNet(network string) DNSOption {
	return func(l *DNSLookuper) {
		l.client.Net = network
	}
}

// NewDNSLookuper creates a lookuper querying the given nameservers in order.
//
// Servers are "host:port" pairs; a missing port defaults to 53.
//
// Parameters:
//   - servers: Nameserver addresses
//   - opts: Optional configuration options
//
// Returns:
//   - *DNSLookuper: A new lookuper
//   - error: If no server is given
func NewDNSLookuper(servers []string, opts ...DNSOption) (*DNSLookuper, error) {
	if len(servers) == 0 {
		return nil, errors.New("regionlb/resolver: at least one nameserver is required")
	}

	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}

	l := &DNSLookuper{
		client:  &dns.Client{Net: "udp", Timeout: 2 * time.Second},
		servers: normalized,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// LookupHost resolves host to its A and AAAA addresses.
//
// IP literals are returned as-is. Servers are tried in order until one
// answers; the last error is returned if none does.
func (l *DNSLookuper) LookupHost(ctx context.Context, host string) ([]string, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []string{addr.String()}, nil
	}

	var lastErr error
	for _, server := range l.servers {
		addrs, err := l.query(ctx, server, dns.Fqdn(host))
		if err == nil {
			return addrs, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func (l *DNSLookuper) query(ctx context.Context, server, fqdn string) ([]string, error) {
	var addrs []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.RecursionDesired = true

		in, _, err := l.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			return nil, fmt.Errorf("regionlb/resolver: query %s %s: %w", server, dns.TypeToString[qtype], err)
		}
		if in.Rcode != dns.RcodeSuccess {
			return nil, fmt.Errorf("regionlb/resolver: query %s %s: %s", server, dns.TypeToString[qtype], dns.RcodeToString[in.Rcode])
		}

		for _, rr := range in.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				addrs = append(addrs, rec.A.String())
			case *dns.AAAA:
				addrs = append(addrs, rec.AAAA.String())
			}
		}
	}

	if len(addrs) == 0 {
		return nil, types.ErrNoAddresses
	}

	return addrs, nil
}
