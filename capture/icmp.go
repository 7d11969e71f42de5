package capture

import (
	"fmt"

	"github.com/Zerofisher/icmpwatch/pkg/model"
)

var icmpv4Names = map[uint8]string{
	0:  "Echo Reply",
	3:  "Destination Unreachable",
	4:  "Source Quench",
	5:  "Redirect",
	8:  "Echo Request",
	9:  "Router Advertisement",
	10: "Router Solicitation",
	11: "Time Exceeded",
	12: "Parameter Problem",
	13: "Timestamp Request",
	14: "Timestamp Reply",
}

var icmpv6Names = map[uint8]string{
	1:   "Destination Unreachable",
	2:   "Packet Too Big",
	3:   "Time Exceeded",
	4:   "Parameter Problem",
	128: "Echo Request",
	129: "Echo Reply",
	133: "Router Solicitation",
	134: "Router Advertisement",
	135: "Neighbor Solicitation",
	136: "Neighbor Advertisement",
	137: "Redirect",
}

// TypeName returns the ICMP message name of an observation.
func TypeName(obs model.Observation) string {
	names := icmpv4Names
	if obs.V6 {
		names = icmpv6Names
	}
	if name, ok := names[obs.ICMPType]; ok {
		return name
	}
	return "Unknown"
}

// Describe formats an observation as a one-line summary.
func Describe(obs model.Observation) string {
	proto := "ICMP"
	if obs.V6 {
		proto = "ICMPv6"
	}
	return fmt.Sprintf("#%d %s %s -> %s %s (type=%d, code=%d) ttl=%d",
		obs.Number, proto, obs.SrcIP, obs.DstIP, TypeName(obs), obs.ICMPType, obs.ICMPCode, obs.TTL)
}
