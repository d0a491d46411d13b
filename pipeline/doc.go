// Package pipeline implements a single-socket UDP DNS query multiplexer: it
// fans one question out to N name servers, correlates responses to
// outstanding requests, fires per-(request, nameserver) timeouts via a
// [github.com/flier/asyncdns/timewheel.Wheel], and invokes caller-supplied
// callbacks.  DNS wire encoding/decoding is delegated to
// [github.com/miekg/dns].  A response is matched to its request by source
// endpoint and transaction ID only; its question section is not compared
// with the request's.
package pipeline
