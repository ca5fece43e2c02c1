// Package scheduler is the cooperative, priority-ordered tick driver:
// it owns a registry of nodes with priorities and individual
// rate budgets, drives their ticks, and routes their logs.
//
// Priority is a plain integer, lower meaning more urgent, with the
// following documented bands:
//
//	0–99:    high priority (real-time, sensors, control)
//	100–199: normal priority (processing, algorithms)
//	200+:    background priority (logging, diagnostics)
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/horus-robotics/horus-go/internal/telemetry"
	"github.com/horus-robotics/horus-go/logring"
	"github.com/horus-robotics/horus-go/node"
	"github.com/horus-robotics/horus-go/platform"
)

var schedLog = telemetry.Component("scheduler")

// State is a node's lifecycle state within the scheduler.
type State int

const (
	StatePending State = iota
	StateRunning
	StateError
	StateShutdown
)

// Stats is a snapshot of one node's tick statistics, exposed as a plain
// struct for the caller to export however it likes (the core itself
// wires no metrics exporter — see DESIGN.md).
type Stats struct {
	Name      string
	State     State
	TickCount uint64
	MeanTick  time.Duration
	Jitter    time.Duration
}

type entry struct {
	n               node.Node
	priority        int
	period          time.Duration // zero: tick every step
	loggingExplicit *bool         // nil: default off
	independent     bool

	state        State
	nextDeadline time.Time
	tickCount    uint64
	meanTickNs   float64
	jitterNs     float64
	lastStart    time.Time
	lastDur      time.Duration

	ctx *node.Context
}

func (e *entry) loggingEnabled() bool {
	return e.loggingExplicit != nil && *e.loggingExplicit
}

// Scheduler owns the node registry for one process. It lives from
// NewScheduler until Run/RunFor/Tick returns or the process exits.
type Scheduler struct {
	entries      []*entry
	byName       map[string]*entry
	logs         *logring.Ring
	minSleep     time.Duration
	parallelOn   bool
	maxParallel  int
	started      bool
	sessionID    string
}

// SessionID is a per-process identifier minted at construction, used to
// namespace this run's topic overlay under platform.SessionTopicsDir
// when a caller wants scheduler-scoped topics instead of the shared
// global namespace.
func (s *Scheduler) SessionID() string { return s.sessionID }

// SessionTopicsDir is the overlay topics directory for this scheduler's
// session.
func (s *Scheduler) SessionTopicsDir() string { return platform.SessionTopicsDir(s.sessionID) }

// NewScheduler constructs an empty scheduler. logs may be nil to disable
// log-ring emission entirely (useful in tests).
func NewScheduler(logs *logring.Ring) *Scheduler {
	return &Scheduler{
		entries:   nil,
		byName:    make(map[string]*entry),
		logs:      logs,
		minSleep:  100 * time.Microsecond,
		sessionID: uuid.NewString(),
	}
}

// Add registers a node at the given priority (lower = more urgent; ties
// broken by insertion order) with a tri-state logging flag: pass a
// pointer to true/false for an explicit choice, or nil for the default
// (off). priority must be >= 0.
func (s *Scheduler) Add(n node.Node, priority int, logging *bool) error {
	if priority < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPriority, priority)
	}
	e := &entry{n: n, priority: priority, loggingExplicit: logging, state: StatePending}
	s.entries = append(s.entries, e)
	s.byName[n.Name()] = e
	return nil
}

// SetNodeRate attaches a tick period of 1/hz to a registered node. A node
// without an explicit rate ticks on every scheduler step.
func (s *Scheduler) SetNodeRate(name string, hz float64) error {
	e, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	if hz <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, hz)
	}
	e.period = time.Duration(float64(time.Second) / hz)
	return nil
}

// MarkIndependent flags the named nodes as safe to run concurrently with
// one another within the same step, when they are simultaneously due and
// parallel execution is enabled. The scheduler never infers independence
// itself — declaring it correctly is the caller's responsibility.
func (s *Scheduler) MarkIndependent(names ...string) error {
	for _, name := range names {
		e, ok := s.byName[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownNode, name)
		}
		e.independent = true
	}
	return nil
}

// EnableParallel turns on the parallel executor for steps whose entire
// due set is marked independent, capped at maxThreads (0 meaning the
// executor's own CPU-count default).
func (s *Scheduler) EnableParallel(maxThreads int) {
	s.parallelOn = true
	s.maxParallel = maxThreads
}

// SetMinSleep overrides the default 100µs minimum sleep between steps.
// Mostly useful for tests that want a tighter loop.
func (s *Scheduler) SetMinSleep(d time.Duration) {
	if d > 0 {
		s.minSleep = d
	}
}

// Stats returns a snapshot of every registered node's tick statistics.
func (s *Scheduler) Stats() []Stats {
	out := make([]Stats, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Stats{
			Name:      e.n.Name(),
			State:     e.state,
			TickCount: e.tickCount,
			MeanTick:  time.Duration(e.meanTickNs),
			Jitter:    time.Duration(e.jitterNs),
		})
	}
	return out
}

// startup sorts the registry by priority ascending and calls Init on
// every node in order. Any failure aborts with all previously
// initialized nodes swept through Shutdown.
func (s *Scheduler) startup() error {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].priority < s.entries[j].priority
	})

	now := time.Now()
	for i, e := range s.entries {
		e.ctx = node.NewContext(e.n.Name(), s.logs)
		e.ctx.LoggingOn = e.loggingEnabled()
		if e.period > 0 {
			e.nextDeadline = now.Add(e.period)
		} else {
			e.nextDeadline = now
		}

		if err := e.n.Init(e.ctx); err != nil {
			e.state = StateError
			schedLog.Error().Str("node", e.n.Name()).Err(err).Msg("init failed")
			s.logEvent(e, logring.KindError, fmt.Sprintf("init failed: %v", err))
			for _, prior := range s.entries[:i] {
				s.shutdownOne(prior)
			}
			return fmt.Errorf("%w: node %q: %v", ErrLifecycleInit, e.n.Name(), err)
		}
		e.state = StateRunning
	}
	s.started = true
	return nil
}

func (s *Scheduler) shutdownOne(e *entry) {
	if e.state == StateShutdown {
		return
	}
	if err := e.n.Shutdown(e.ctx); err != nil {
		s.logEvent(e, logring.KindError, fmt.Sprintf("shutdown failed: %v", err))
	}
	e.state = StateShutdown
}

func (s *Scheduler) shutdownAll() {
	for _, e := range s.entries {
		s.shutdownOne(e)
	}
}

func (s *Scheduler) logEvent(e *entry, kind logring.Kind, message string) {
	if s.logs == nil {
		return
	}
	s.logs.Push(logring.NewRecord(e.n.Name(), kind, "", message))
}

// allError reports whether every node has transitioned to StateError.
func (s *Scheduler) allError() bool {
	for _, e := range s.entries {
		if e.state != StateError {
			return false
		}
	}
	return len(s.entries) > 0
}

// Run drives steps until ctx is cancelled or every node is in Error
// state.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started {
		if err := s.startup(); err != nil {
			return err
		}
	}
	defer s.shutdownAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if s.allError() {
			return nil
		}
		sleepFor := s.step()
		if sleepFor > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(sleepFor):
			}
		}
	}
}

// RunFor bounds Run to a wall-clock duration.
func (s *Scheduler) RunFor(ctx context.Context, d time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.Run(cctx)
}

// Tick runs exactly n steps restricted to the named subset of nodes,
// used for tests and single-step tools. Every named
// node ticks on each of the n steps regardless of its configured rate —
// Tick is a forced single-step driver, not a rate-respecting run.
func (s *Scheduler) Tick(ctx context.Context, names []string, n int) error {
	if !s.started {
		if err := s.startup(); err != nil {
			return err
		}
	}

	set := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := s.byName[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownNode, name)
		}
		set[name] = true
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		for _, e := range s.entries {
			if !set[e.n.Name()] || e.state == StateError {
				continue
			}
			s.tickOne(e)
		}
	}
	return nil
}

// step executes one scheduler iteration: compute due nodes, tick them
// (serially or via the parallel executor), advance deadlines, and return
// how long to sleep before the next step.
func (s *Scheduler) step() time.Duration {
	now := time.Now()

	var due []*entry
	for _, e := range s.entries {
		if e.state == StateError {
			continue
		}
		if e.period == 0 || !now.Before(e.nextDeadline) {
			due = append(due, e)
		}
	}

	if len(due) > 0 {
		allIndependent := s.parallelOn
		for _, e := range due {
			if !e.independent {
				allIndependent = false
				break
			}
		}
		if allIndependent && len(due) > 1 {
			s.tickParallel(due)
		} else {
			for _, e := range due {
				s.tickOne(e)
			}
		}
		for _, e := range due {
			if e.period > 0 {
				next := e.nextDeadline.Add(e.period)
				if next.Before(now) {
					// fell behind by more than one period: skip catch-up
					next = now.Add(e.period)
				}
				e.nextDeadline = next
			}
		}
	}

	return s.sleepDuration(now)
}

func (s *Scheduler) sleepDuration(now time.Time) time.Duration {
	var nearest time.Time
	have := false
	for _, e := range s.entries {
		if e.state == StateError || e.period == 0 {
			continue
		}
		if !have || e.nextDeadline.Before(nearest) {
			nearest = e.nextDeadline
			have = true
		}
	}
	if !have {
		return s.minSleep
	}
	d := nearest.Sub(now)
	if d <= 0 {
		return 0
	}
	if d < s.minSleep {
		return s.minSleep
	}
	return d
}

// tickOne invokes one node's Tick with panic recovery, updating its
// statistics and, on failure, transitioning it to StateError.
// A node's Tick is never invoked concurrently with itself — tickOne is
// only ever called from the single scheduler goroutine or from one
// exclusive executor chunk.
func (s *Scheduler) tickOne(e *entry) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.state = StateError
			schedLog.Error().Str("node", e.n.Name()).Interface("panic", r).Msg("tick panicked")
			s.logEvent(e, logring.KindError, fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	e.ctx.TickIndex = e.tickCount
	e.ctx.LastTickDur = e.lastDur

	e.n.Tick(e.ctx)

	dur := time.Since(start)
	e.lastDur = dur
	e.tickCount++
	e.updateStats(dur)
}

func (e *entry) updateStats(dur time.Duration) {
	// Exponential moving average/deviation, cheap and allocation-free,
	// good enough for the mean/jitter bound checked in property 6.
	const alpha = 0.1
	d := float64(dur)
	if e.tickCount == 1 {
		e.meanTickNs = d
		e.jitterNs = 0
		return
	}
	delta := d - e.meanTickNs
	e.meanTickNs += alpha * delta
	e.jitterNs += alpha * (abs(delta) - e.jitterNs)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
