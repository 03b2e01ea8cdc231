// Package probe decides whether a candidate address belongs to an imaging
// device and, if so, what the device is called.
//
// Reachability is tested with ICMP echo sent out of the adapter that saw the
// announcement. A device that answers is then named from its mDNS
// advertisement when one is visible on the same link; otherwise it gets a
// name derived from its address.
//
// # Privileges
//
// ICMPProber sends raw ICMP by default, which needs CAP_NET_RAW on Linux.
// Unprivileged UDP pings can be selected with Options.Privileged=false when
// net.ipv4.ping_group_range allows it.
package probe
