package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/multisense/autoconnect/internal/capture"
	"github.com/multisense/autoconnect/internal/logging"
	"github.com/multisense/autoconnect/internal/netif"
	"github.com/multisense/autoconnect/internal/probe"
	"github.com/multisense/autoconnect/internal/registry"
)

// enumerate merges host interfaces into the registry until scanning stops.
// Adapters are never removed; one that disappears keeps its last state.
func (s *Service) enumerate(ctx context.Context) error {
	s.Logf("Performing adapter scan")

	for s.scanning.Load() {
		ifaces, err := s.deps.Lister.Interfaces(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.throttle("enumerate").Do(func() {
				s.Logf("%v", NewTransientError("", "list adapters", err))
			})
		} else {
			found := make([]registry.Adapter, 0, len(ifaces))
			for _, it := range ifaces {
				found = append(found, registry.Adapter{
					Name:             it.Name,
					Index:            it.Index,
					Description:      it.HardwareAddr,
					SupportsEthernet: it.SupportsEthernet,
				})
			}
			for _, a := range s.registry.Merge(found) {
				s.Logf("Found adapter: %s index: %d supports: %t", a.Name, a.Index, a.SupportsEthernet)
			}
		}

		if !sleep(ctx, s.settings.EnumerateInterval) {
			return nil
		}
	}
	return nil
}

// listen captures on one adapter until listening stops or the capture
// timeout elapses. It always hands the adapter back to the registry on
// exit so a later tick can claim it again.
func (s *Service) listen(ctx context.Context, a registry.Adapter) error {
	defer func() {
		if err := s.registry.ReleaseCapture(a.Name); err != nil {
			s.logger.Warn("Failed to release capture claim", zap.String("adapter", a.Name), zap.Error(err))
		}
	}()

	s.logger.Debug("Configuring adapter", logging.Adapter(a.Name, a.Index)...)

	src, err := s.deps.Opener.Open(a.Name, a.Index)
	if err != nil {
		return NewSetupError(a.Name, "open capture", err)
	}
	defer src.Close()

	if err := src.SetPromiscuous(); err != nil {
		s.throttle(a.Name+"/promiscuous").Do(func() {
			s.Logf("%v", NewTransientError(a.Name, "enable promiscuous mode", err))
		})
	}

	s.throttle(a.Name+"/search").Do(func() {
		s.Logf("Performing device search on adapter: %s", a.Name)
	})

	decoder := capture.NewDecoder()
	decodeLog := rate.Sometimes{First: 3, Interval: 10 * time.Second}
	buf := make([]byte, capture.MaxFrameSize)
	deadline := time.Now().Add(s.settings.CaptureTimeout)

	for s.listening.Load() && time.Now().Before(deadline) {
		n, err := src.ReadFrame(buf)
		if errors.Is(err, capture.ErrNoFrame) {
			if !sleep(ctx, s.settings.CaptureIdleBackoff) {
				return nil
			}
			continue
		}
		if err != nil {
			return NewTransientError(a.Name, "read frame", err)
		}

		frame := buf[:n]
		logging.LogFrame(a.Name, frame)

		address, ok, err := decoder.Announcer(frame)
		if err != nil {
			decodeLog.Do(func() {
				s.logger.Debug("Undecodable frame", zap.String("adapter", a.Name), zap.Error(err))
			})
			continue
		}
		if !ok {
			continue
		}

		added, err := s.registry.AddCandidate(a.Name, address)
		if err != nil {
			return NewTransientError(a.Name, "record candidate", err)
		}
		if added {
			s.Logf("Got address %s on adapter: %s", address, a.Name)
		}
	}
	return nil
}

// checkForDevice probes the oldest candidate of one adapter. Exactly one
// address leaves the queue per run and always ends up searched.
func (s *Service) checkForDevice(ctx context.Context, adapter string) error {
	if !s.active() {
		s.registry.AbortProbe(adapter)
		return nil
	}

	address, ok := s.registry.NextCandidate(adapter)
	if !ok {
		return nil
	}

	var found *registry.Device
	var taskErr error
	defer func() {
		if err := s.registry.FinishProbe(adapter, address, found); err != nil {
			s.logger.Warn("Failed to record probe", zap.String("adapter", adapter), zap.Error(err))
		}
	}()

	s.Logf("Checking for device at %s on: %s", address, adapter)

	if err := s.configureAdapter(adapter, address, false); err != nil {
		// The adapter may already be on the right subnet; probe anyway.
		s.Logf("%v", err)
	}

	if !sleep(ctx, s.settings.PropagationDelay) {
		return nil
	}

	device, err := s.deps.Prober.Probe(ctx, address, adapter)
	switch {
	case err == nil:
		s.Logf("Success. Found device %s at: %s on: %s", device.Name, address, adapter)
		s.setJumboMTU(adapter)
		found = &registry.Device{Name: device.Name, Address: address}
	case errors.Is(err, probe.ErrNoDevice):
		s.Logf("No device at %s", address)
		s.logger.Debug("Probe negative", zap.Error(NewNoDeviceError(adapter, address, err)))
	case ctx.Err() != nil:
	default:
		taskErr = NewTransientError(adapter, "probe "+address, err)
	}
	return taskErr
}

// configureAdapter moves the host onto the device's subnet. With mtu set
// it also applies the jumbo MTU.
func (s *Service) configureAdapter(adapter, deviceAddress string, mtu bool) error {
	host, err := netif.HostAddress(deviceAddress)
	if err != nil {
		return NewMalformedInputError(adapter, "derive host address", err)
	}

	s.Logf("Setting ip: %s At interface: %s", host, adapter)

	s.configMu.Lock()
	err = s.deps.Configurator.SetHostAddress(adapter, host)
	s.configMu.Unlock()
	if err != nil {
		return NewTransientError(adapter, fmt.Sprintf("set address %s", host), err)
	}

	if mtu {
		s.setJumboMTU(adapter)
	}
	return nil
}

func (s *Service) setJumboMTU(adapter string) {
	mtu := s.settings.JumboMTU

	s.configMu.Lock()
	err := s.deps.Configurator.SetMTU(adapter, mtu)
	s.configMu.Unlock()

	if err != nil {
		s.Logf("Failed to set MTU to %d on: %s: %v", mtu, adapter, err)
		return
	}
	s.Logf("Set MTU to %d on: %s", mtu, adapter)
}
