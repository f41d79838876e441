// Package livereload turns file change events into sprite updates for
// connected development clients. A Channel debounces events, rebuilds the
// session sprite, and pushes the result only when the file set changed.
package livereload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/conneroisu/iconsprite/internal/build"
	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/watcher"
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultDebounce is the quiet period before a batched rebuild fires.
const DefaultDebounce = 100 * time.Millisecond

const eventQueueSize = 64

// UpdateEvent is the name of the custom event clients listen for.
const UpdateEvent = "svg-sprite:update"

// ErrChannelClosed is returned by Run after Close.
var ErrChannelClosed = errors.New("live update channel closed")

// Update is the payload pushed to clients after a rebuild.
type Update struct {
	SpriteContent string `json:"spriteContent"`
	IconCount     int    `json:"iconCount"`
}

// Rebuilder recomputes the sprite. Result.Changed is false when the
// fingerprint did not move.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*build.BuildResult, error)
}

// Broadcaster delivers updates to connected clients.
type Broadcaster interface {
	SendUpdate(ctx context.Context, update Update) error
	RequestReload(ctx context.Context) error
}

// State is the position of a Channel in its debounce cycle.
type State int32

const (
	StateIdle State = iota
	StatePending
	StateRebuilding
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// Config tunes a Channel.
type Config struct {
	Debounce time.Duration
	// Verbose logs the symbol set diff of every pushed update.
	Verbose bool
}

// Stats counts channel activity.
type Stats struct {
	Events    int64 `json:"events"`
	Rebuilds  int64 `json:"rebuilds"`
	Pushed    int64 `json:"pushed"`
	Unchanged int64 `json:"unchanged"`
	Reloads   int64 `json:"reloads"`
}

// Channel is the debounce and rebuild state machine for one session. Run
// owns the timer; Notify may be called from any goroutine.
type Channel struct {
	rebuilder   Rebuilder
	broadcaster Broadcaster
	logger      logging.Logger
	debounce    time.Duration
	verbose     bool

	events chan watcher.ChangeEvent
	closed chan struct{}
	closer atomic.Bool
	state  atomic.Int32

	eventCount   atomic.Int64
	rebuildCount atomic.Int64
	pushedCount  atomic.Int64
	skippedCount atomic.Int64
	reloadCount  atomic.Int64
}

// NewChannel creates an idle channel.
func NewChannel(rebuilder Rebuilder, broadcaster Broadcaster, cfg Config, logger logging.Logger) *Channel {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Channel{
		rebuilder:   rebuilder,
		broadcaster: broadcaster,
		logger:      logger.WithComponent("livereload"),
		debounce:    cfg.Debounce,
		verbose:     cfg.Verbose,
		events:      make(chan watcher.ChangeEvent, eventQueueSize),
		closed:      make(chan struct{}),
	}
}

// Notify queues a change event. It never blocks; when the queue is full
// the event is dropped since a rebuild is already due.
func (c *Channel) Notify(ev watcher.ChangeEvent) {
	if c.closer.Load() {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

// Attach forwards events from a watcher until the source closes or ctx is
// done.
func (c *Channel) Attach(ctx context.Context, events <-chan watcher.ChangeEvent) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				c.Notify(ev)
			}
		}
	}()
}

// Run processes events until ctx is done or Close is called. Events that
// arrive during a rebuild start the next debounce cycle once it finishes.
func (c *Channel) Run(ctx context.Context) error {
	timer := time.NewTimer(c.debounce)
	timer.Stop()
	defer timer.Stop()

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			c.state.Store(int32(StateIdle))
			return ctx.Err()
		case <-c.closed:
			c.state.Store(int32(StateIdle))
			return ErrChannelClosed
		case ev := <-c.events:
			c.eventCount.Add(1)
			c.logger.Debug(ctx, "Icon change", "type", ev.Type.String(), "path", ev.Path)
			timer.Reset(c.debounce)
			fire = timer.C
			c.state.Store(int32(StatePending))
		case <-fire:
			fire = nil
			c.state.Store(int32(StateRebuilding))
			c.rebuild(ctx)
			c.state.Store(int32(StateIdle))
		}
	}
}

// Close stops Run and cancels any pending timer. Further events are
// ignored.
func (c *Channel) Close() {
	if c.closer.CompareAndSwap(false, true) {
		close(c.closed)
	}
}

// State returns the current state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Stats returns activity counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Events:    c.eventCount.Load(),
		Rebuilds:  c.rebuildCount.Load(),
		Pushed:    c.pushedCount.Load(),
		Unchanged: c.skippedCount.Load(),
		Reloads:   c.reloadCount.Load(),
	}
}

func (c *Channel) rebuild(ctx context.Context) {
	c.rebuildCount.Add(1)

	result, err := c.safeRebuild(ctx)
	if err == nil && result != nil && result.Error != nil {
		err = result.Error
	}
	if err != nil || result == nil || result.Sprite == nil {
		if err == nil {
			err = spriteerrors.NewBuildError(spriteerrors.ErrCodeRebuildFailed, "rebuild produced no sprite", nil)
		}
		c.logger.Error(ctx, err, "Sprite rebuild failed, requesting full reload")
		c.reloadCount.Add(1)
		if rerr := c.broadcaster.RequestReload(ctx); rerr != nil {
			c.logger.Warn(ctx, rerr, "Failed to request reload")
		}
		return
	}

	if !result.Changed {
		c.skippedCount.Add(1)
		c.logger.Debug(ctx, "Fingerprint unchanged, no update sent", "fingerprint", result.Fingerprint)
		return
	}

	if c.verbose {
		if diff := SymbolDiff(result.Previous, result.Sprite.IDs()); diff != "" {
			c.logger.Info(ctx, "Sprite symbols changed", "diff", diff)
		}
	}

	update := Update{SpriteContent: result.Sprite.Markup(), IconCount: result.Sprite.Count()}
	if err := c.broadcaster.SendUpdate(ctx, update); err != nil {
		c.logger.Warn(ctx, err, "Failed to push sprite update")
		return
	}
	c.pushedCount.Add(1)
	c.logger.Info(ctx, "Sprite update pushed", "icons", update.IconCount, "duration", result.Duration)
}

func (c *Channel) safeRebuild(ctx context.Context) (result *build.BuildResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = spriteerrors.NewBuildError(spriteerrors.ErrCodeRebuildFailed, fmt.Sprintf("rebuild panicked: %v", r), nil)
		}
	}()
	return c.rebuilder.Rebuild(ctx)
}

// SymbolDiff renders a unified diff between two symbol identifier lists.
// It returns "" when they are equal.
func SymbolDiff(before, after []string) string {
	if strings.Join(before, "\n") == strings.Join(after, "\n") {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        lines(before),
		B:        lines(after),
		FromFile: "previous",
		ToFile:   "current",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return diff
}

func lines(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id + "\n"
	}
	return out
}
