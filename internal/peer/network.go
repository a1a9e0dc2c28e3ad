package peer

import (
	"net"
	"strings"
)

// cgnatBlock is 100.64.0.0/10, used by carrier-grade NAT and overlay VPNs
// such as Cloudflare WARP and Tailscale.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var vpnNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// netInterface is the part of a network interface the relay heuristic
// looks at.
type netInterface struct {
	name  string
	flags net.Flags
	addrs []net.Addr
}

// ShouldForceRelay reports whether the host looks to be behind a VPN or
// CGNAT, where direct connectivity usually fails and TURN is needed.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	list := make([]netInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, _ := iface.Addrs()
		list = append(list, netInterface{name: iface.Name, flags: iface.Flags, addrs: addrs})
	}
	return relayHint(list)
}

func relayHint(ifaces []netInterface) bool {
	for _, iface := range ifaces {
		if iface.flags&net.FlagUp == 0 || iface.flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.name)
		for _, hint := range vpnNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, addr := range iface.addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
