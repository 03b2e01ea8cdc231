package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// AnnouncementProtocol is the IP protocol number devices announce with.
const AnnouncementProtocol = layers.IPProtocolIGMP

// Decoder extracts announcer addresses from Ethernet frames. It reuses its
// layer buffers and must not be shared between goroutines.
type Decoder struct {
	eth     layers.Ethernet
	ip4     layers.IPv4
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// NewDecoder returns a decoder for Ethernet/IPv4 frames.
func NewDecoder() *Decoder {
	d := &Decoder{decoded: make([]gopacket.LayerType, 0, 2)}
	d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &d.eth, &d.ip4)
	d.parser.IgnoreUnsupported = true
	return d
}

// Announcer returns the IPv4 source address of frame when it is an
// announcement. ok is false for any other traffic. err is only set for
// frames that claim to be IPv4 but cannot be decoded.
func (d *Decoder) Announcer(frame []byte) (addr string, ok bool, err error) {
	if err := d.parser.DecodeLayers(frame, &d.decoded); err != nil {
		return "", false, err
	}
	for _, lt := range d.decoded {
		if lt != layers.LayerTypeIPv4 {
			continue
		}
		if d.ip4.Protocol != AnnouncementProtocol {
			return "", false, nil
		}
		src := d.ip4.SrcIP.To4()
		if src == nil || src.IsUnspecified() {
			return "", false, nil
		}
		return src.String(), true, nil
	}
	return "", false, nil
}
