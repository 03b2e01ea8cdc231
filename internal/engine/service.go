package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/multisense/autoconnect/internal/capture"
	"github.com/multisense/autoconnect/internal/config"
	"github.com/multisense/autoconnect/internal/logging"
	"github.com/multisense/autoconnect/internal/netif"
	"github.com/multisense/autoconnect/internal/pool"
	"github.com/multisense/autoconnect/internal/probe"
	"github.com/multisense/autoconnect/internal/registry"
	"github.com/multisense/autoconnect/internal/status"
)

// StatusChannel carries status documents out and controller commands in.
// It is only used from the orchestrator goroutine.
type StatusChannel interface {
	Publish(doc []byte) error
	Ingest() ([]byte, error)
	OutboundCapacity() int
	Close() error
}

// Deps are the collaborators a Service drives.
type Deps struct {
	Lister       netif.Lister
	Opener       capture.Opener
	Configurator netif.Configurator
	Prober       probe.Prober

	// OpenChannel is called once when the run starts if IPC is enabled.
	OpenChannel func() (StatusChannel, error)

	// Logger defaults to the global logger tagged with a run id.
	Logger *zap.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Lister == nil:
		return errors.New("missing interface lister")
	case d.Opener == nil:
		return errors.New("missing capture opener")
	case d.Configurator == nil:
		return errors.New("missing interface configurator")
	case d.Prober == nil:
		return errors.New("missing device prober")
	}
	return nil
}

// Service is the discovery service context. Every task receives the
// Service and reaches shared state only through its registry, its log and
// its flags.
type Service struct {
	settings *config.Settings
	deps     Deps
	logger   *zap.Logger
	runID    string

	registry *registry.Registry
	log      status.Log
	pool     *pool.Pool
	channel  StatusChannel

	running   atomic.Bool
	listening atomic.Bool
	scanning  atomic.Bool
	started   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	scanWG sync.WaitGroup

	// Configurator calls are serialised across adapters.
	configMu sync.Mutex

	resultsMu   sync.Mutex
	lastResults []status.Result

	throttleMu sync.Mutex
	throttles  map[string]*rate.Sometimes
}

// New creates a stopped service.
func New(settings *config.Settings, deps Deps) (*Service, error) {
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	logger, runID := logging.NewRunLogger()
	if deps.Logger != nil {
		logger = deps.Logger.With(zap.String("run_id", runID))
	}

	return &Service{
		settings:  settings,
		deps:      deps,
		logger:    logger,
		runID:     runID,
		registry:  registry.New(),
		done:      make(chan struct{}),
		throttles: make(map[string]*rate.Sometimes),
	}, nil
}

// Start begins a run. Cancelling ctx has the same effect as Stop, without
// waiting.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("service already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)
	s.listening.Store(true)
	s.scanning.Store(true)

	s.pool = pool.New(s.ctx, s.settings.Workers, s.handleResult)
	s.Logf("Started AutoConnect service")

	// The scan loop lives for the whole run, so it gets its own goroutine
	// and never occupies a pool worker.
	s.scanWG.Add(1)
	go s.runScan(s.ctx)

	go s.run(s.ctx)
	return nil
}

// runScan runs the enumeration loop and reports its outcome like a pool task.
func (s *Service) runScan(ctx context.Context) {
	defer s.scanWG.Done()

	start := time.Now()
	res := pool.Result{Task: "enumerate"}
	defer func() {
		if r := recover(); r != nil {
			res.Err = &pool.PanicError{Task: res.Task, Value: r, Stack: debug.Stack()}
		}
		res.Duration = time.Since(start)
		s.handleResult(res)
	}()

	res.Err = s.enumerate(ctx)
}

// Stop ends the run and waits until IPC resources are released and the
// workers have exited.
func (s *Service) Stop() {
	s.clearFlags()
	if s.started.Load() {
		<-s.done
	}
}

// PollEvents reports whether the run loop is still active.
func (s *Service) PollEvents() bool {
	return s.running.Load()
}

// Done is closed once the run has fully ended.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// RunID identifies this run in structured logs.
func (s *Service) RunID() string {
	return s.runID
}

// Logf appends a line to the status log and mirrors it to the structured
// logger.
func (s *Service) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.log.Append(line)
	s.logger.Info(line)
}

// LogLines returns every status log line so far.
func (s *Service) LogLines() []string {
	return s.log.Lines()
}

// Adapters returns a copy of the registry contents.
func (s *Service) Adapters() []registry.Adapter {
	return s.registry.List()
}

// Results builds the current Result set from the registry.
func (s *Service) Results() []status.Result {
	found := s.registry.Discovered()
	if len(found) == 0 {
		return nil
	}
	results := make([]status.Result, 0, len(found))
	for _, a := range found {
		r := status.Result{
			Name:           a.Name,
			Index:          a.Index,
			Description:    a.Description,
			AddressList:    make([]string, 0, len(a.DiscoveredDevices)),
			CameraNameList: make([]string, 0, len(a.DiscoveredDevices)),
		}
		for _, d := range a.DiscoveredDevices {
			r.AddressList = append(r.AddressList, d.Address)
			r.CameraNameList = append(r.CameraNameList, d.Name)
		}
		results = append(results, r)
	}
	return results
}

// Document builds a status document from the current state.
func (s *Service) Document() *status.Document {
	return status.NewDocument(s.log.Lines(), s.Results())
}

func (s *Service) clearFlags() {
	s.listening.Store(false)
	s.scanning.Store(false)
	s.running.Store(false)
}

// active is true while every loop is allowed to continue.
func (s *Service) active() bool {
	return s.running.Load() && s.listening.Load() && s.scanning.Load()
}

// reportAndExit logs a fatal condition and ends the run loop.
func (s *Service) reportAndExit(op string, err error) {
	s.Logf("%s: %v", op, err)
	s.logger.Error("Ending run", zap.String("op", op), zap.Error(err))
	s.running.Store(false)
}

// throttle returns the limiter for one recurring message.
func (s *Service) throttle(key string) *rate.Sometimes {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	t, ok := s.throttles[key]
	if !ok {
		t = &rate.Sometimes{First: 1, Interval: 10 * time.Second}
		s.throttles[key] = t
	}
	return t
}

// handleResult receives every finished task. Failures are logged; none of
// them ends the run.
func (s *Service) handleResult(r pool.Result) {
	if r.Err == nil {
		s.logger.Debug("Task finished",
			zap.String("task", r.Task),
			zap.Duration("took", r.Duration),
			zap.Int("active", s.pool.Active()),
			zap.Int("pending", s.pool.Pending()),
		)
		return
	}
	if errors.Is(r.Err, context.Canceled) {
		return
	}

	var pe *pool.PanicError
	if errors.As(r.Err, &pe) {
		s.Logf("Task %s crashed: %v", r.Task, pe.Value)
		s.logger.Error("Task panicked", zap.String("task", r.Task), zap.ByteString("stack", pe.Stack))
		return
	}

	var te *TaskError
	if errors.As(r.Err, &te) {
		s.throttle(te.Adapter+"/"+te.Op).Do(func() {
			s.Logf("%v", te)
		})
		s.logger.Debug("Task failed",
			zap.String("task", r.Task),
			zap.Stringer("kind", te.Kind),
			zap.String("adapter", te.Adapter),
			zap.Error(te.Err),
		)
		return
	}

	s.Logf("Task %s failed: %v", r.Task, r.Err)
}

// sleep waits for d or until ctx ends, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
