package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/scanner"
	"github.com/conneroisu/iconsprite/internal/svg"
)

// Mode is the command mode a session runs in.
type Mode string

const (
	// ModeServe is an interactive development session.
	ModeServe Mode = "serve"
	// ModeBuild is a one-shot production build.
	ModeBuild Mode = "build"
)

// SessionConfig is the fully resolved configuration of one build context.
// IconDir must already be validated against the project root.
type SessionConfig struct {
	IconDir     string
	SpriteID    string
	SpriteClass string
	Prefix      string
	Mode        Mode

	Optimize         bool
	OptimizerEngine  string
	OptimizerOptions map[string]interface{}

	TreeShaking    bool
	PerPage        bool
	ScanDir        string
	ScanExtensions []string

	CacheSize int
}

// BuildResult describes one pass of the pipeline.
type BuildResult struct {
	Sprite      *Sprite
	Fingerprint string
	// Changed is false when a rebuild found the fingerprint unchanged and
	// skipped parsing.
	Changed    bool
	Discovered int
	Duration   time.Duration
	Error      error
	// Previous holds the symbol identifiers of the sprite being replaced.
	Previous []string
}

// Session owns the parse cache, the current sprite, and its fingerprint
// for one build context. Sessions never share state.
type Session struct {
	cfg    SessionConfig
	logger logging.Logger

	scanner   *scanner.Scanner
	cache     *ParseCache
	parser    *Parser
	assembler *Assembler
	detector  *ChangeDetector
	metrics   *BuildMetrics

	// build serializes pipeline runs and guards discovered.
	build      sync.Mutex
	discovered []string

	mu          sync.RWMutex
	icons       []Icon
	sprite      *Sprite
	fingerprint string
	pageSprites map[string]*Sprite
}

// NewSession creates a session for cfg.
func NewSession(cfg SessionConfig, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("session")

	cache := NewParseCache(cfg.CacheSize)

	var parserOpts []ParserOption
	if cfg.Optimize {
		parserOpts = append(parserOpts, WithOptimizer(svg.NewResolver(cfg.OptimizerEngine, cfg.OptimizerOptions, logger)))
	}

	return &Session{
		cfg:         cfg,
		logger:      logger,
		scanner:     scanner.New(logger),
		cache:       cache,
		parser:      NewParser(cache, logger, parserOpts...),
		assembler:   NewAssembler(cfg.SpriteID, cfg.SpriteClass, cfg.Prefix, logger),
		detector:    NewChangeDetector(cache, logger),
		metrics:     NewBuildMetrics(),
		sprite:      &Sprite{ID: cfg.SpriteID, Class: cfg.SpriteClass},
		pageSprites: make(map[string]*Sprite),
	}
}

// Config returns the session configuration.
func (s *Session) Config() SessionConfig { return s.cfg }

// Build runs discovery, parsing, optional tree-shaking, and assembly, and
// installs the result as the current sprite.
func (s *Session) Build(ctx context.Context) (*BuildResult, error) {
	return s.run(ctx, false)
}

// Rebuild recomputes the fingerprint and rebuilds only when it differs from
// the current one. Result.Changed reports whether a new sprite was made.
func (s *Session) Rebuild(ctx context.Context) (*BuildResult, error) {
	return s.run(ctx, true)
}

func (s *Session) run(ctx context.Context, skipUnchanged bool) (result *BuildResult, err error) {
	s.build.Lock()
	defer s.build.Unlock()

	start := time.Now()
	result = &BuildResult{Previous: s.Current().IDs()}

	defer func() {
		if r := recover(); r != nil {
			err = spriteerrors.NewBuildError(spriteerrors.ErrCodeRebuildFailed, fmt.Sprintf("sprite build panicked: %v", r), nil)
		}
		result.Duration = time.Since(start)
		result.Error = err
		s.metrics.RecordBuild(result)
	}()

	paths := s.scanner.FindIcons(ctx, s.cfg.IconDir)
	result.Discovered = len(paths)
	s.purgeVanished(ctx, paths)

	result.Fingerprint = s.detector.Fingerprint(ctx, paths)
	if skipUnchanged && result.Fingerprint == s.Fingerprint() {
		result.Sprite = s.Current()
		s.logger.Debug(ctx, "Fingerprint unchanged, skipping rebuild", "fingerprint", result.Fingerprint)
		return result, nil
	}

	icons := s.parser.ParseAll(ctx, paths)
	if err := ctx.Err(); err != nil {
		return result, spriteerrors.NewBuildError(spriteerrors.ErrCodeRebuildFailed, "sprite build cancelled", err)
	}

	shaken := icons
	if s.projectTreeShaking() {
		used := s.scanner.FindUsedIdentifiers(ctx, s.cfg.ScanDir, s.cfg.ScanExtensions)
		shaken = FilterToUsed(icons, used, s.cfg.Prefix)
		s.logger.Info(ctx, "Tree-shaken sprite", "referenced", len(used), "kept", len(shaken), "total", len(icons))
	}

	sprite := s.assembler.Assemble(ctx, shaken)

	s.mu.Lock()
	s.icons = icons
	s.sprite = sprite
	s.fingerprint = result.Fingerprint
	s.pageSprites = make(map[string]*Sprite)
	s.mu.Unlock()

	result.Sprite = sprite
	result.Changed = true

	s.logger.Info(ctx, "Sprite built",
		"icons", sprite.Count(), "discovered", len(paths), "duplicates", len(sprite.Duplicates),
		"fingerprint", result.Fingerprint)

	return result, nil
}

// purgeVanished drops the cache entries of files discovered by the
// previous pass but not by this one, then records paths as the new set.
func (s *Session) purgeVanished(ctx context.Context, paths []string) {
	current := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		current[path] = struct{}{}
	}
	for _, path := range s.discovered {
		if _, ok := current[path]; ok {
			continue
		}
		removed := s.cache.InvalidatePath(path)
		s.logger.Debug(ctx, "Icon no longer discovered, purged cache entries", "file", path, "removed", removed)
	}
	s.discovered = paths
}

// projectTreeShaking reports whether the whole-project filter applies.
// Tree-shaking is production only; per-page mode filters in PageSprite.
func (s *Session) projectTreeShaking() bool {
	return s.cfg.Mode == ModeBuild && s.cfg.TreeShaking && !s.cfg.PerPage
}

func (s *Session) pageTreeShaking() bool {
	return s.cfg.Mode == ModeBuild && s.cfg.TreeShaking && s.cfg.PerPage
}

// PageSprite returns the sprite to inject into the page at pagePath whose
// source is markup. With per-page tree-shaking it holds only the symbols
// the page references and is cached by page path; otherwise it is the
// current sprite.
func (s *Session) PageSprite(ctx context.Context, pagePath, markup string) *Sprite {
	if !s.pageTreeShaking() {
		return s.Current()
	}

	s.mu.RLock()
	cached, ok := s.pageSprites[pagePath]
	icons := s.icons
	s.mu.RUnlock()
	if ok {
		return cached
	}

	used := scanner.ScanContent(markup)
	sprite := s.assembler.Assemble(ctx, FilterToUsed(icons, used, s.cfg.Prefix))
	s.logger.Debug(ctx, "Page sprite built", "page", pagePath, "referenced", len(used), "icons", sprite.Count())

	s.mu.Lock()
	s.pageSprites[pagePath] = sprite
	s.mu.Unlock()

	return sprite
}

// Current returns the current sprite. Before the first build it is empty.
func (s *Session) Current() *Sprite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sprite
}

// Icons returns every icon parsed by the last build, before tree-shaking.
func (s *Session) Icons() []Icon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.icons
}

// Fingerprint returns the fingerprint of the current sprite's file set.
func (s *Session) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint
}

// Metrics returns build metrics.
func (s *Session) Metrics() MetricsSnapshot { return s.metrics.GetSnapshot() }

// SuccessRate returns successful builds as a percentage of builds that did
// work.
func (s *Session) SuccessRate() float64 { return s.metrics.GetSuccessRate() }

// CacheStats returns parse cache statistics.
func (s *Session) CacheStats() CacheStats { return s.cache.Stats() }

// Close clears the parse cache, per-page sprites, and build metrics.
func (s *Session) Close() {
	s.cache.Clear()
	s.metrics.Reset()

	s.mu.Lock()
	s.pageSprites = make(map[string]*Sprite)
	s.mu.Unlock()
}
