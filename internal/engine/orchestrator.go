package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/multisense/autoconnect/internal/status"
)

// run is the orchestrator loop.
func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	start := time.Now()
	limit := s.settings.RunLimit

	if s.deps.OpenChannel != nil && s.settings.IPC.Enabled {
		ch, err := s.deps.OpenChannel()
		if err != nil {
			s.reportAndExit("Can't open shared memory channel", err)
		} else {
			s.channel = ch
		}
	}

	for s.running.Load() {
		if ctx.Err() != nil {
			s.Logf("Stopping auto connect")
			s.clearFlags()
			break
		}

		s.scheduleCaptures()
		s.scheduleProbes()

		if s.channel != nil {
			s.publish("")
			sleep(ctx, s.settings.TickInterval)
			s.ingest()
		} else {
			sleep(ctx, s.settings.TickInterval)
		}

		if time.Since(start) > limit {
			s.Logf("Time limit of %v reached. Exiting AutoConnect.", limit)
			break
		}
	}

	s.Logf("Exiting autoconnect")
	s.shutdown()
}

// scheduleCaptures submits a capture task for every adapter it can claim.
// The registry lock is released before any submission.
func (s *Service) scheduleCaptures() {
	for _, a := range s.registry.ClaimCapture() {
		a := a
		if err := s.pool.Submit("capture "+a.Name, func(ctx context.Context) error {
			return s.listen(ctx, a)
		}); err != nil {
			_ = s.registry.ReleaseCapture(a.Name)
		}
	}
}

// scheduleProbes submits a probe task for every adapter with candidates and
// no probe in flight.
func (s *Service) scheduleProbes() {
	for _, name := range s.registry.ClaimProbe() {
		name := name
		if err := s.pool.Submit("probe "+name, func(ctx context.Context) error {
			return s.checkForDevice(ctx, name)
		}); err != nil {
			s.registry.AbortProbe(name)
		}
	}
}

// publish sends the current document, tagged with command when non-empty.
// The Result set sent becomes the one SetIP indexes into.
func (s *Service) publish(command string) {
	if s.channel == nil {
		return
	}

	doc := s.Document()
	doc.Command = command

	data, err := doc.MarshalLimit(s.channel.OutboundCapacity())
	if err != nil {
		s.logger.Warn("Status document not published", zap.Error(err))
		return
	}
	if err := s.channel.Publish(data); err != nil {
		s.reportAndExit("sem_post", err)
		return
	}

	s.resultsMu.Lock()
	s.lastResults = doc.Result
	s.resultsMu.Unlock()
}

// ingest reads and handles at most one controller command.
func (s *Service) ingest() {
	if s.channel == nil {
		return
	}

	payload, err := s.channel.Ingest()
	if err != nil {
		s.reportAndExit("sem_post", err)
		return
	}

	cmd, err := status.ParseCommand(payload)
	if err != nil {
		s.Logf("%v", NewMalformedInputError("", "parse command", err))
		return
	}
	if cmd != nil {
		s.handleCommand(cmd)
	}
}

func (s *Service) handleCommand(cmd *status.Command) {
	switch cmd.Kind {
	case status.KindStop:
		s.Logf("Stopping auto connect")
		s.publish("")
		s.clearFlags()
	case status.KindSetAddress:
		s.setAddress(cmd.Index)
	}
}

// setAddress points the host at the first device of a published result.
func (s *Service) setAddress(index int) {
	s.Logf("Setting ip for result %d", index)

	s.resultsMu.Lock()
	results := s.lastResults
	s.resultsMu.Unlock()

	if index < 0 || index >= len(results) {
		s.Logf("%v", NewMalformedInputError("", "set ip",
			fmt.Errorf("result index %d out of range, %d results published", index, len(results))))
		return
	}
	r := results[index]
	if len(r.AddressList) == 0 {
		s.Logf("%v", NewMalformedInputError(r.Name, "set ip", fmt.Errorf("result %d has no address", index)))
		return
	}

	if err := s.configureAdapter(r.Name, r.AddressList[0], true); err != nil {
		s.Logf("%v", err)
	}
}

// shutdown releases everything the run holds. It runs once, on the
// orchestrator goroutine.
func (s *Service) shutdown() {
	s.listening.Store(false)
	s.scanning.Store(false)

	if s.channel != nil {
		s.publish(status.CommandStop)
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("Failed to release shared memory channel", zap.Error(err))
		}
		s.channel = nil
	}

	s.cancel()
	s.scanWG.Wait()
	if dropped := s.pool.Close(); len(dropped) > 0 {
		s.logger.Debug("Discarded queued tasks", zap.Strings("tasks", dropped))
	}

	s.running.Store(false)
	s.logger.Info("Run finished", zap.Int("adapters", s.registry.Len()))
}
