package engine

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/multisense/autoconnect/internal/capture"
	"github.com/multisense/autoconnect/internal/config"
	"github.com/multisense/autoconnect/internal/netif"
	"github.com/multisense/autoconnect/internal/probe"
	"github.com/multisense/autoconnect/internal/status"
)

type fakeLister struct {
	mu     sync.Mutex
	ifaces []netif.Interface
	err    error
}

func (f *fakeLister) Interfaces(ctx context.Context) ([]netif.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]netif.Interface(nil), f.ifaces...), nil
}

// fakeOpener hands out sources that replay a per-adapter frame queue. The
// queue is shared by every source opened for that adapter.
type fakeOpener struct {
	mu      sync.Mutex
	frames  map[string][][]byte
	opens   map[string]int
	openErr error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		frames: make(map[string][][]byte),
		opens:  make(map[string]int),
	}
}

func (f *fakeOpener) queue(adapter string, frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[adapter] = append(f.frames[adapter], frame)
}

func (f *fakeOpener) openCount(adapter string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[adapter]
}

func (f *fakeOpener) Open(adapter string, index uint32) (capture.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[adapter]++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeSource{opener: f, adapter: adapter}, nil
}

type fakeSource struct {
	opener  *fakeOpener
	adapter string
}

func (s *fakeSource) ReadFrame(buf []byte) (int, error) {
	s.opener.mu.Lock()
	defer s.opener.mu.Unlock()
	q := s.opener.frames[s.adapter]
	if len(q) == 0 {
		return 0, capture.ErrNoFrame
	}
	n := copy(buf, q[0])
	s.opener.frames[s.adapter] = q[1:]
	return n, nil
}

func (s *fakeSource) SetPromiscuous() error { return nil }
func (s *fakeSource) Close() error          { return nil }

type configCall struct {
	op      string
	adapter string
	value   string
	mtu     int
}

type fakeConfigurator struct {
	mu    sync.Mutex
	calls []configCall
}

func (f *fakeConfigurator) SetHostAddress(adapter, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, configCall{op: "address", adapter: adapter, value: address})
	return nil
}

func (f *fakeConfigurator) SetMTU(adapter string, mtu int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, configCall{op: "mtu", adapter: adapter, mtu: mtu})
	return nil
}

func (f *fakeConfigurator) snapshot() []configCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]configCall(nil), f.calls...)
}

type fakeProber struct {
	mu      sync.Mutex
	devices map[string]string
	probed  []string
}

func (f *fakeProber) Probe(ctx context.Context, address, adapter string) (*probe.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, address)
	name, ok := f.devices[address]
	if !ok {
		return nil, probe.ErrNoDevice
	}
	return &probe.Device{Name: name, Address: address}, nil
}

func (f *fakeProber) probedAddresses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.probed...)
}

type fakeChannel struct {
	mu        sync.Mutex
	published [][]byte
	inbound   [][]byte
	capacity  int
	closed    bool
}

func (f *fakeChannel) Publish(doc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	f.published = append(f.published, append([]byte(nil), doc...))
	return nil
}

func (f *fakeChannel) Ingest() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return nil, nil
	}
	cmd := f.inbound[0]
	f.inbound = f.inbound[1:]
	return cmd, nil
}

func (f *fakeChannel) OutboundCapacity() int {
	if f.capacity == 0 {
		return 32*1024 - 1
	}
	return f.capacity
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) send(cmd []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, cmd)
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) last(t *testing.T) *status.Document {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return nil
	}
	doc, err := status.ParseDocument(f.published[len(f.published)-1])
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	return doc
}

// testSettings shrinks every timing so a full discovery completes in
// milliseconds.
func testSettings() *config.Settings {
	s := config.Default()
	s.TickInterval = 5 * time.Millisecond
	s.RunLimit = 10 * time.Second
	s.EnumerateInterval = 5 * time.Millisecond
	s.CaptureTimeout = 50 * time.Millisecond
	s.CaptureIdleBackoff = time.Millisecond
	s.PropagationDelay = time.Millisecond
	s.Workers = 4
	s.IPC.Enabled = true
	return s
}

type harness struct {
	lister  *fakeLister
	opener  *fakeOpener
	config  *fakeConfigurator
	prober  *fakeProber
	channel *fakeChannel
	svc     *Service
}

func newHarness(t *testing.T, settings *config.Settings) *harness {
	t.Helper()

	h := &harness{
		lister: &fakeLister{ifaces: []netif.Interface{
			{Name: "lo", Index: 1, SupportsEthernet: false},
			{Name: "eth0", Index: 2, HardwareAddr: "00:1b:21:3a:4f:10", SupportsEthernet: true},
		}},
		opener:  newFakeOpener(),
		config:  &fakeConfigurator{},
		prober:  &fakeProber{devices: map[string]string{}},
		channel: &fakeChannel{},
	}

	svc, err := New(settings, Deps{
		Lister:       h.lister,
		Opener:       h.opener,
		Configurator: h.config,
		Prober:       h.prober,
		OpenChannel:  func() (StatusChannel, error) { return h.channel, nil },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.svc = svc
	t.Cleanup(svc.Stop)
	return h
}

func announcement(t *testing.T, src string) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x1b, 0x21, 0x3a, 0x4f, 0x99},
		DstMAC:       net.HardwareAddr{0x01, 0x00, 0x5e, 0x00, 0x00, 0x16},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      1,
		Protocol: layers.IPProtocolIGMP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.IPv4(224, 0, 0, 22).To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	payload := gopacket.Payload{0x22, 0x00, 0xfa, 0xff, 0x00, 0x00, 0x00, 0x00}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, payload); err != nil {
		t.Fatalf("SerializeLayers() error = %v", err)
	}
	return buf.Bytes()
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
