package pipeline

import (
	"net/netip"
	"sync"

	"github.com/miekg/dns"
)

// resolvConfPath is the conventional location of the system resolver
// configuration on Unix-like systems.
const resolvConfPath = "/etc/resolv.conf"

// systemNameServers caches the parsed result of resolvConfPath, read at
// most once per process, per spec.md §9 ("read once and cached... avoid
// re-parsing on every query").
var systemNameServersOnce struct {
	sync.Once
	servers []netip.AddrPort
	err     error
}

// systemNameServers returns the host's configured DNS servers with the
// conventional port 53, parsed from [resolvConfPath] via
// [dns.ClientConfigFromFile] — the same parser
// [github.com/miekg/dns] ships for exactly this purpose, replacing the
// dnspython get_default_resolver() call the original implementation used.
func systemNameServers() ([]netip.AddrPort, error) {
	systemNameServersOnce.Do(func() {
		cfg, err := dns.ClientConfigFromFile(resolvConfPath)
		if err != nil {
			systemNameServersOnce.err = err

			return
		}

		servers := make([]netip.AddrPort, 0, len(cfg.Servers))
		for _, s := range cfg.Servers {
			addr, aErr := netip.ParseAddr(s)
			if aErr != nil {
				continue
			}

			servers = append(servers, netip.AddrPortFrom(addr, 53))
		}

		systemNameServersOnce.servers = servers
	})

	return systemNameServersOnce.servers, systemNameServersOnce.err
}
