// Package resolver provides a per-resource-type answer projection layer on
// top of [github.com/flier/asyncdns/pipeline]: it turns a raw [*dns.Msg]
// response into plain Go values grouped by record type, and exposes one
// typed convenience method per common query type.
package resolver
