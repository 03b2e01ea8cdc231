// Package capture reads raw frames from one adapter and recognises the
// multicast group-membership reports that imaging devices send when they
// come up.
//
// A Source is an AF_PACKET socket bound to a single interface index with a
// classic BPF program attached, so the kernel only queues IPv4 frames that
// carry IGMP. Frames are still decoded and checked in userspace by Decoder
// before their source address is treated as a candidate.
package capture
