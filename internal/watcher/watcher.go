package watcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smolnikov/domofon-core/internal/face"
	"github.com/smolnikov/domofon-core/internal/relay"
)

// DoorSource supplies the current relay catalog.
type DoorSource interface {
	Doors() []relay.Record
}

// FrameFetcher pulls one camera frame from a door's image URL.
type FrameFetcher interface {
	FetchFrame(ctx context.Context, url string) ([]byte, error)
}

// Matcher is the frame-matching subset of the face matcher.
type Matcher interface {
	Available() bool
	Match(frame []byte) (*face.Match, error)
}

// Opener is the door-command subset of the dispatcher.
type Opener interface {
	OpenDoor(ctx context.Context, mac string, doorID int, openLink string) error
}

// Logger is the logging interface for the watcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Default watcher timings.
const (
	DefaultInterval = 5 * time.Second
	DefaultCooldown = 30 * time.Second
)

// Options configures a Watcher.
type Options struct {
	Doors   DoorSource
	Frames  FrameFetcher
	Matcher Matcher
	Opener  Opener

	// Interval is the tick period between cycles.
	Interval time.Duration

	// Cooldown is the minimum gap between automatic opens of one door.
	Cooldown time.Duration

	// DoorUIDs selects the doors to watch. Empty means the default
	// selection: the main entrance with a camera, or failing that the
	// first camera-capable door.
	DoorUIDs []string

	// Sink receives watcher events; optional.
	Sink Sink

	// Clock overrides time.Now for cooldown checks; used by tests.
	Clock func() time.Time
}

// Watcher drives the background face-match loop. Safe for concurrent
// use.
type Watcher struct {
	doors    DoorSource
	frames   FrameFetcher
	matcher  Matcher
	opener   Opener
	interval time.Duration
	cooldown time.Duration
	explicit []string
	sink     Sink
	clock    func() time.Time
	logger   Logger

	mu       sync.Mutex
	selected map[string]struct{}
	lastOpen map[string]time.Time
	running  bool
	pending  bool
	armed    bool
	stopped  bool
	ticker   *time.Ticker

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher. It does nothing until Start.
func New(opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Watcher{
		doors:    opts.Doors,
		frames:   opts.Frames,
		matcher:  opts.Matcher,
		opener:   opts.Opener,
		interval: opts.Interval,
		cooldown: opts.Cooldown,
		explicit: opts.DoorUIDs,
		sink:     opts.Sink,
		clock:    clock,
		logger:   noopLogger{},
		selected: map[string]struct{}{},
		lastOpen: map[string]time.Time{},
		stop:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Start arms the ticker and begins watching. The context bounds every
// cycle's outbound calls; cancelling it stops new cycles from starting.
func (w *Watcher) Start(ctx context.Context) {
	available := w.availableDoors()
	selection := w.explicit
	if len(selection) == 0 {
		selection = defaultSelection(available)
	}

	w.mu.Lock()
	w.selected = map[string]struct{}{}
	for _, uid := range selection {
		if _, ok := available[uid]; ok {
			w.selected[uid] = struct{}{}
		}
	}
	w.ticker = time.NewTicker(w.interval)
	w.armed = len(w.selected) > 0
	if !w.armed {
		w.ticker.Stop()
		w.logger.Info("watcher idle: no doors selected")
	} else {
		w.logger.Info("watcher started", "doors", len(w.selected), "interval", w.interval)
	}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			case <-w.ticker.C:
				w.requestCycle(ctx)
			}
		}
	}()
}

// Trigger requests one cycle outside the tick schedule. If a cycle is
// already running it is coalesced into a single follow-up run.
func (w *Watcher) Trigger(ctx context.Context) {
	w.requestCycle(ctx)
}

// SetSelection replaces the watched door set and re-arms the ticker
// when the new selection is non-empty.
func (w *Watcher) SetSelection(uids []string) {
	available := w.availableDoors()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	w.selected = map[string]struct{}{}
	for _, uid := range uids {
		if _, ok := available[uid]; ok {
			w.selected[uid] = struct{}{}
		}
	}

	if w.ticker == nil {
		return
	}
	if len(w.selected) > 0 && !w.armed {
		w.ticker.Reset(w.interval)
		w.armed = true
		w.logger.Info("watcher re-armed", "doors", len(w.selected))
	} else if len(w.selected) == 0 && w.armed {
		w.ticker.Stop()
		w.armed = false
		w.logger.Info("watcher disarmed: selection empty")
	}
}

// Selected returns the watched door uids in stable order.
func (w *Watcher) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	uids := make([]string, 0, len(w.selected))
	for uid := range w.selected {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// Stop disarms the ticker, discards any pending run and waits for an
// in-flight cycle to complete.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.pending = false
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("watcher stopped")
}

// requestCycle starts a cycle, or flags a pending run when one is
// already in flight.
func (w *Watcher) requestCycle(ctx context.Context) {
	w.mu.Lock()
	if w.stopped || len(w.selected) == 0 {
		w.mu.Unlock()
		return
	}
	if w.running {
		w.pending = true
		w.mu.Unlock()
		w.logger.Debug("cycle already running, coalescing request")
		return
	}
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.runCycles(ctx)
}

// runCycles executes the in-flight cycle plus at most one coalesced
// follow-up per pending request.
func (w *Watcher) runCycles(ctx context.Context) {
	defer w.wg.Done()
	for {
		w.cycle(ctx)

		w.mu.Lock()
		if w.pending && !w.stopped {
			w.pending = false
			w.mu.Unlock()
			continue
		}
		w.running = false
		w.mu.Unlock()
		return
	}
}

// cycle processes every selected door once.
func (w *Watcher) cycle(ctx context.Context) {
	started := w.clock()
	available := w.availableDoors()

	w.mu.Lock()
	for uid := range w.selected {
		if _, ok := available[uid]; !ok {
			delete(w.selected, uid)
			delete(w.lastOpen, uid)
			w.logger.Info("door vanished from catalog, pruned from watch set", "uid", uid)
		}
	}
	uids := make([]string, 0, len(w.selected))
	for uid := range w.selected {
		uids = append(uids, uid)
	}
	if len(uids) == 0 && w.armed {
		w.ticker.Stop()
		w.armed = false
		w.logger.Info("watcher disarmed: no watched doors remain")
	}
	w.mu.Unlock()

	sort.Strings(uids)
	for _, uid := range uids {
		w.processDoor(ctx, available[uid])
	}

	w.emit(Event{
		Type:     EventCycleCompleted,
		Doors:    len(uids),
		Duration: w.clock().Sub(started),
		At:       w.clock(),
	})
}

// processDoor fetches one frame and opens the door on a cooled-down
// match. Every failure is logged and contained; sibling doors still run.
func (w *Watcher) processDoor(ctx context.Context, door relay.Record) {
	if door.ImageURL == "" {
		w.logger.Debug("door has no image url, skipping", "uid", door.UID)
		return
	}

	frame, err := w.frames.FetchFrame(ctx, door.ImageURL)
	if err != nil {
		w.logger.Warn("frame fetch failed", "uid", door.UID, "error", err)
		return
	}

	match, err := w.matcher.Match(frame)
	if err != nil {
		w.logger.Warn("frame matching failed", "uid", door.UID, "error", err)
		return
	}
	if match == nil {
		return
	}

	w.logger.Info("known face at door", "uid", door.UID, "name", match.Name, "distance", match.Distance)
	w.emit(Event{
		Type:     EventFaceMatched,
		DoorUID:  door.UID,
		Address:  door.Address,
		Name:     match.Name,
		Distance: match.Distance,
		At:       w.clock(),
	})

	now := w.clock()
	w.mu.Lock()
	last, seen := w.lastOpen[door.UID]
	w.mu.Unlock()
	if seen && now.Sub(last) < w.cooldown {
		w.logger.Debug("door inside cooldown, not opening", "uid", door.UID, "since", now.Sub(last))
		return
	}

	if err := w.opener.OpenDoor(ctx, door.MAC, door.DoorID, door.OpenLink); err != nil {
		w.logger.Error("automatic open failed", "uid", door.UID, "name", match.Name, "error", err)
		w.emit(Event{
			Type:    EventOpenFailed,
			DoorUID: door.UID,
			Address: door.Address,
			Name:    match.Name,
			Error:   err.Error(),
			At:      w.clock(),
		})
		return
	}

	w.mu.Lock()
	w.lastOpen[door.UID] = now
	w.mu.Unlock()

	w.logger.Info("door opened automatically", "uid", door.UID, "name", match.Name)
	w.emit(Event{
		Type:     EventDoorOpened,
		DoorUID:  door.UID,
		Address:  door.Address,
		Name:     match.Name,
		Distance: match.Distance,
		At:       w.clock(),
	})
}

func (w *Watcher) availableDoors() map[string]relay.Record {
	available := map[string]relay.Record{}
	for _, door := range w.doors.Doors() {
		available[door.UID] = door
	}
	return available
}

func (w *Watcher) emit(event Event) {
	if w.sink != nil {
		w.sink(event)
	}
}

// defaultSelection picks the doors watched when none are configured:
// the main entrance with a camera, or the first camera-capable door.
func defaultSelection(available map[string]relay.Record) []string {
	uids := make([]string, 0, len(available))
	for uid := range available {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var firstCapable string
	for _, uid := range uids {
		door := available[uid]
		if !door.HasVideo || door.ImageURL == "" {
			continue
		}
		if door.IsMain {
			return []string{uid}
		}
		if firstCapable == "" {
			firstCapable = uid
		}
	}
	if firstCapable == "" {
		return nil
	}
	return []string{firstCapable}
}
