// Package plugin adapts the sprite pipeline to a host build tool's
// lifecycle: configuration resolved, build start, page transform, server
// configuration, and close.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/iconsprite/internal/build"
	"github.com/conneroisu/iconsprite/internal/config"
	"github.com/conneroisu/iconsprite/internal/inject"
	"github.com/conneroisu/iconsprite/internal/livereload"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/validation"
	"github.com/conneroisu/iconsprite/internal/watcher"
)

// Name identifies the plugin to hosts.
const Name = "iconsprite"

// ErrNotResolved is returned by hooks called before ConfigResolved.
var ErrNotResolved = errors.New("plugin configuration not resolved")

// Plugin is one instance of the sprite plugin. Each instance owns its own
// session; instances never share state.
type Plugin struct {
	cfg    *config.Config
	logger logging.Logger

	mu          sync.Mutex
	projectRoot string
	mode        build.Mode
	iconDir     string
	session     *build.Session
	watcher     *watcher.FileWatcher
	channel     *livereload.Channel
	cancel      context.CancelFunc
	running     sync.WaitGroup
}

// New creates an unresolved plugin.
func New(cfg *config.Config, logger logging.Logger) *Plugin {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Plugin{
		cfg:    cfg,
		logger: logger.WithComponent("plugin"),
	}
}

// ConfigResolved receives the project root and command mode. It validates
// the icon directory and creates the session. A directory outside the
// project root is fatal and returns a *errors.PathTraversalError.
func (p *Plugin) ConfigResolved(projectRoot string, mode build.Mode) error {
	iconDir, err := validation.ValidateIconDir(p.cfg.Sprite.IconDir, projectRoot)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	options := map[string]interface{}{}
	if p.cfg.Optimize.Enabled {
		options, err = p.cfg.OptimizerOptions(root)
		if err != nil {
			return err
		}
	}

	scanDir := p.cfg.TreeShaking.ScanDir
	if scanDir != "" && !filepath.IsAbs(scanDir) {
		scanDir = filepath.Join(root, scanDir)
	}

	session := build.NewSession(build.SessionConfig{
		IconDir:          iconDir,
		SpriteID:         p.cfg.Sprite.ID,
		SpriteClass:      p.cfg.Sprite.Class,
		Prefix:           p.cfg.Sprite.Prefix,
		Mode:             mode,
		Optimize:         p.cfg.Optimize.Enabled,
		OptimizerEngine:  p.cfg.Optimize.Engine,
		OptimizerOptions: options,
		TreeShaking:      p.cfg.TreeShaking.Enabled,
		PerPage:          p.cfg.TreeShaking.PerPage,
		ScanDir:          scanDir,
		ScanExtensions:   p.cfg.TreeShaking.Extensions,
	}, p.logger)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.session.Close()
	}
	p.projectRoot = root
	p.mode = mode
	p.iconDir = iconDir
	p.session = session

	p.logger.Debug(context.Background(), "Configuration resolved", "root", root, "mode", string(mode), "icon_dir", iconDir)
	return nil
}

// BuildStart runs the full pipeline and installs the sprite.
func (p *Plugin) BuildStart(ctx context.Context) (*build.BuildResult, error) {
	session, err := p.Session()
	if err != nil {
		return nil, err
	}
	return session.Build(ctx)
}

// TransformPage returns the tags to inject into the page at pagePath: the
// sprite container and, in serve mode, the live-update client.
func (p *Plugin) TransformPage(ctx context.Context, markup, pagePath string) ([]inject.TagDescriptor, error) {
	session, err := p.Session()
	if err != nil {
		return nil, err
	}

	tags := []inject.TagDescriptor{inject.SpriteTag(session.PageSprite(ctx, pagePath, markup))}
	if p.Mode() == build.ModeServe {
		tags = append(tags, inject.ClientScriptTag(inject.ClientConfig{
			Path:     inject.DefaultWebSocketPath,
			SpriteID: p.cfg.Sprite.ID,
			Event:    livereload.UpdateEvent,
		}))
	}
	return tags, nil
}

// TransformHTML applies TransformPage's tags to markup.
func (p *Plugin) TransformHTML(ctx context.Context, markup, pagePath string) (string, error) {
	tags, err := p.TransformPage(ctx, markup, pagePath)
	if err != nil {
		return "", err
	}
	return inject.Apply(markup, tags)
}

// ConfigureServer attaches a watcher and live-update channel that push
// sprite updates through broadcaster. It does nothing outside serve mode or
// when watching is disabled.
func (p *Plugin) ConfigureServer(ctx context.Context, broadcaster livereload.Broadcaster) error {
	session, err := p.Session()
	if err != nil {
		return err
	}
	if p.Mode() != build.ModeServe || !p.cfg.Development.Watch {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		return nil
	}

	fw, err := watcher.NewFileWatcher(p.logger, watcher.IconFilter, watcher.UnderRootFilter(p.iconDir))
	if err != nil {
		return fmt.Errorf("creating icon watcher: %w", err)
	}
	if err := fw.AddRecursiveWithin(p.iconDir, p.projectRoot); err != nil {
		p.logger.Warn(ctx, err, "Icon directory not watched", "dir", p.iconDir)
	}

	channel := livereload.NewChannel(session, broadcaster, livereload.Config{
		Debounce: time.Duration(p.cfg.Development.DebounceMS) * time.Millisecond,
		Verbose:  p.cfg.Verbose,
	}, p.logger)

	runCtx, cancel := context.WithCancel(ctx)
	fw.Start(runCtx)
	channel.Attach(runCtx, fw.Events())

	p.running.Add(1)
	go func() {
		defer p.running.Done()
		if err := channel.Run(runCtx); err != nil && !errors.Is(err, livereload.ErrChannelClosed) && !errors.Is(err, context.Canceled) {
			p.logger.Error(runCtx, err, "Live update channel stopped")
		}
	}()

	p.watcher = fw
	p.channel = channel
	p.cancel = cancel
	p.logger.Info(ctx, "Watching icons", "dir", p.iconDir, "debounce_ms", p.cfg.Development.DebounceMS)
	return nil
}

// Close detaches the watcher, cancels any pending rebuild, and clears the
// parse cache. It is safe to call more than once.
func (p *Plugin) Close() error {
	p.mu.Lock()
	fw, channel, cancel, session := p.watcher, p.channel, p.cancel, p.session
	p.watcher, p.channel, p.cancel = nil, nil, nil
	p.mu.Unlock()

	var err error
	if channel != nil {
		channel.Close()
	}
	if cancel != nil {
		cancel()
	}
	if fw != nil {
		err = fw.Stop()
	}
	p.running.Wait()
	if session != nil {
		session.Close()
	}
	return err
}

// Session returns the resolved session.
func (p *Plugin) Session() (*build.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, ErrNotResolved
	}
	return p.session, nil
}

// Mode returns the resolved command mode.
func (p *Plugin) Mode() build.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// ProjectRoot returns the resolved absolute project root.
func (p *Plugin) ProjectRoot() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projectRoot
}

// Channel returns the live-update channel, or nil when none is attached.
func (p *Plugin) Channel() *livereload.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}
