package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// DNS classes attached to connection failures under detail["dns"].
const (
	DNSResolves      = "RESOLVES"
	DNSNXDomain      = "NXDOMAIN"
	DNSNoARecord     = "NO_A_RECORD"
	DNSServfail      = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName   = "INVALID_NAME"
	defaultDNSLookup = 3 * time.Second
)

// Resolver is the subset of *net.Resolver used for diagnosis.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// DNSDiagnoser classifies a host's DNS state after a connection failure.
type DNSDiagnoser struct {
	Resolver Resolver
	Timeout  time.Duration
}

func NewDNSDiagnoser() *DNSDiagnoser {
	return &DNSDiagnoser{Resolver: net.DefaultResolver, Timeout: defaultDNSLookup}
}

// Diagnose returns one of the DNS* classes for host.
func (d *DNSDiagnoser) Diagnose(ctx context.Context, host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return DNSInvalidName
	}
	if net.ParseIP(host) != nil {
		return DNSResolves
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDNSLookup
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	r := d.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	ips, err := r.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return DNSResolves
	}

	// The zone exists when it has nameservers, even without an address.
	if ns, nsErr := r.LookupNS(ctx, host); nsErr == nil && len(ns) > 0 {
		return DNSNoARecord
	}

	var de *net.DNSError
	switch {
	case err == nil:
		return DNSNoARecord
	case errors.As(err, &de) && de.IsNotFound:
		return DNSNXDomain
	default:
		return DNSServfail
	}
}
