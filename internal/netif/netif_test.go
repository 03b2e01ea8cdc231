package netif

import (
	"context"
	"testing"
)

func TestHostAddress(t *testing.T) {
	tests := []struct {
		name    string
		device  string
		want    string
		wantErr bool
	}{
		{"two digit host", "10.66.171.21", "10.66.171.2", false},
		{"three digit host", "192.168.0.199", "192.168.0.2", false},
		{"already host", "10.1.1.2", "10.1.1.2", false},
		{"surrounding space", " 10.1.1.5 ", "10.1.1.2", false},
		{"empty", "", "", true},
		{"garbage", "not-an-ip", "", true},
		{"ipv6", "fe80::1", "", true},
		{"short", "10.1.1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HostAddress(tt.device)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HostAddress(%q) error = %v, wantErr %v", tt.device, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HostAddress(%q) = %q, want %q", tt.device, got, tt.want)
			}
		})
	}
}

func TestSystemLister_Loopback(t *testing.T) {
	ifaces, err := NewLister().Interfaces(context.Background())
	if err != nil {
		t.Skipf("interface enumeration unavailable: %v", err)
	}
	for _, it := range ifaces {
		if it.Name == "lo" && it.SupportsEthernet {
			t.Error("loopback reported as Ethernet capable")
		}
		if it.Index == 0 {
			t.Errorf("interface %s has zero index", it.Name)
		}
	}
}
