package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/AdguardTeam/golibs/netutil"
	"github.com/miekg/dns"

	"github.com/flier/asyncdns/internal/optslog"
	"github.com/flier/asyncdns/pipeline"
)

// ResultFunc is the non-blocking lookup callback surface. It fires exactly
// once per target name server, carrying the queried name alongside the
// projected results, per spec.md §6's note that "a higher-level lookup
// callback may additionally carry the queried name."
type ResultFunc func(nameServer netip.AddrPort, qname string, results Results, err error)

// Resolver wraps a [*pipeline.Pipeline] and projects raw [*dns.Msg]
// responses into [Results], grounded on the original implementation's
// Resolver class in resolver.py.
type Resolver struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// New returns a Resolver backed by p. If logger is nil, [slog.Default] is
// used.
func New(p *pipeline.Pipeline, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{pipeline: p, logger: logger}
}

// Lookup blocks for the first successful response to a query for
// (qname, rdtype, rdclass) and projects its answer section into [Results].
func (r *Resolver) Lookup(
	ctx context.Context,
	qname string,
	rdtype, rdclass uint16,
	opts pipeline.QueryOptions,
) (Results, error) {
	opts.Callback = nil

	msg, err := question(qname, rdtype, rdclass)
	if err != nil {
		return nil, err
	}

	_, resp, err := r.pipeline.Query(ctx, msg, opts)
	if err != nil {
		optslog.Debug2(ctx, r.logger, "resolver: lookup failed", "qname", qname, "error", err)

		return nil, err
	}

	return project(resp), nil
}

// LookupCallback is the non-blocking form of Lookup: it enqueues the query
// and returns immediately, invoking cb once per target name server.
func (r *Resolver) LookupCallback(
	ctx context.Context,
	qname string,
	rdtype, rdclass uint16,
	cb ResultFunc,
	opts pipeline.QueryOptions,
) {
	msg, err := question(qname, rdtype, rdclass)
	if err != nil {
		cb(netip.AddrPort{}, qname, nil, err)

		return
	}

	opts.Callback = func(ns netip.AddrPort, resp *dns.Msg, err error) {
		if err != nil {
			cb(ns, qname, nil, err)

			return
		}

		cb(ns, qname, project(resp), nil)
	}

	r.pipeline.Query(ctx, msg, opts)
}

// question builds a minimal query message for (qname, rdtype, rdclass),
// rejecting a qname that is not a syntactically valid domain name before it
// ever reaches the wire, the same guard the teacher applies to
// caller-supplied hostnames in internal/filter/hashprefix/filter.go.
func question(qname string, rdtype, rdclass uint16) (*dns.Msg, error) {
	if err := netutil.ValidateDomainName(qname); err != nil {
		return nil, fmt.Errorf("resolver: invalid query name %q: %w", qname, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(qname), rdtype)
	msg.Question[0].Qclass = rdclass

	return msg, nil
}

// LookupAddress looks up A records, per resolver.py's lookupAddress.
func (r *Resolver) LookupAddress(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeA, dns.ClassINET, opts)
}

// LookupIPv6Address looks up AAAA records, per resolver.py's lookupIPV6Address.
func (r *Resolver) LookupIPv6Address(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeAAAA, dns.ClassINET, opts)
}

// LookupMailExchange looks up MX records, per resolver.py's lookupMailExchange.
func (r *Resolver) LookupMailExchange(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeMX, dns.ClassINET, opts)
}

// LookupNameservers looks up NS records, per resolver.py's lookupNameservers.
func (r *Resolver) LookupNameservers(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeNS, dns.ClassINET, opts)
}

// LookupCanonicalName looks up CNAME records, per resolver.py's lookupCanonicalName.
func (r *Resolver) LookupCanonicalName(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeCNAME, dns.ClassINET, opts)
}

// LookupPointer looks up PTR records, per resolver.py's lookupPointer.
func (r *Resolver) LookupPointer(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypePTR, dns.ClassINET, opts)
}

// LookupAuthority looks up SOA records, per resolver.py's lookupAuthority.
func (r *Resolver) LookupAuthority(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeSOA, dns.ClassINET, opts)
}

// LookupService looks up SRV records, per resolver.py's lookupService.
func (r *Resolver) LookupService(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeSRV, dns.ClassINET, opts)
}

// LookupHostInfo looks up HINFO records, per resolver.py's lookupHostInfo.
func (r *Resolver) LookupHostInfo(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeHINFO, dns.ClassINET, opts)
}

// LookupText looks up TXT records, per resolver.py's lookupText.
func (r *Resolver) LookupText(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeTXT, dns.ClassINET, opts)
}

// LookupResponsibility looks up RP records, per resolver.py's lookupResponsibility.
func (r *Resolver) LookupResponsibility(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeRP, dns.ClassINET, opts)
}

// LookupAllRecords looks up every record type (query type ANY), per
// resolver.py's lookupAllRecords.
func (r *Resolver) LookupAllRecords(ctx context.Context, qname string, opts pipeline.QueryOptions) (Results, error) {
	return r.Lookup(ctx, qname, dns.TypeANY, dns.ClassINET, opts)
}
