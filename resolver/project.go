package resolver

import "github.com/miekg/dns"

// MXRecord is the projection of one MX record.
type MXRecord struct {
	Exchange   string
	Preference uint16
}

// SOARecord is the projection of one SOA record.
type SOARecord struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// SRVRecord is the projection of one SRV record.
type SRVRecord struct {
	Target   string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// HINFORecord is the projection of one HINFO record.
type HINFORecord struct {
	CPU string
	OS  string
}

// RPRecord is the projection of one RP record.
type RPRecord struct {
	Mbox string
	Txt  string
}

// Results groups projected record values by their DNS type name (e.g. "A",
// "MX", "TXT"), matching the shape the original implementation's onfinish
// callback built up in its results dict.
type Results map[string][]any

// project groups every answer record in resp by type name and projects
// each into a plain Go value via extractValue.
func project(resp *dns.Msg) Results {
	results := make(Results)

	for _, rr := range resp.Answer {
		typeName := dns.TypeToString[rr.Header().Rrtype]
		results[typeName] = append(results[typeName], extractValue(rr))
	}

	return results
}

// extractValue is a direct structural port of Resolver._extract_value from
// the original Python implementation's resolver.py, switching on RR type
// and projecting each into the plain value(s) a caller actually wants
// instead of the full [dns.RR] wire struct.
func extractValue(rr dns.RR) any {
	switch rdata := rr.(type) {
	case *dns.A:
		return rdata.A.String()
	case *dns.AAAA:
		return rdata.AAAA.String()
	case *dns.MX:
		return MXRecord{Exchange: rdata.Mx, Preference: rdata.Preference}
	case *dns.NS:
		return rdata.Ns
	case *dns.CNAME:
		return rdata.Target
	case *dns.PTR:
		return rdata.Ptr
	case *dns.SOA:
		return SOARecord{
			MName:   rdata.Ns,
			RName:   rdata.Mbox,
			Serial:  rdata.Serial,
			Refresh: rdata.Refresh,
			Retry:   rdata.Retry,
			Expire:  rdata.Expire,
			Minimum: rdata.Minttl,
		}
	case *dns.SRV:
		return SRVRecord{
			Target:   rdata.Target,
			Port:     rdata.Port,
			Priority: rdata.Priority,
			Weight:   rdata.Weight,
		}
	case *dns.HINFO:
		return HINFORecord{CPU: rdata.Cpu, OS: rdata.Os}
	case *dns.TXT:
		return append([]string(nil), rdata.Txt...)
	case *dns.RP:
		return RPRecord{Mbox: rdata.Mbox, Txt: rdata.Txt}
	default:
		return rr.String()
	}
}
