package build

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/svg"
)

const (
	// MaxIconSize is the hard ceiling on icon file size.
	MaxIconSize = 5 * 1024 * 1024

	// EmptyReadAttempts bounds reads of a file that comes back empty.
	// Editors can truncate a file for a moment while saving it.
	EmptyReadAttempts = 3

	// EmptyRetryDelay is the pause between empty reads.
	EmptyRetryDelay = 50 * time.Millisecond

	// maxConcurrentParses bounds parallel parses in ParseAll.
	maxConcurrentParses = 8
)

// Icon is a parsed icon together with the file it came from.
type Icon struct {
	Path string
	ParsedIcon
}

// Parser reads, validates, sanitizes, and optionally optimizes icon files.
// Results are memoized in a ParseCache keyed by path, mtime, and the
// optimize flag.
type Parser struct {
	cache     *ParseCache
	optimizer *svg.Resolver
	optimize  bool
	logger    logging.Logger

	stat     func(string) (os.FileInfo, error)
	readFile func(string) ([]byte, error)
	sleep    func(context.Context, time.Duration) error
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithOptimizer enables the optimizer pass through resolver.
func WithOptimizer(resolver *svg.Resolver) ParserOption {
	return func(p *Parser) {
		p.optimizer = resolver
		p.optimize = resolver != nil
	}
}

// WithReadFile replaces the file reader.
func WithReadFile(readFile func(string) ([]byte, error)) ParserOption {
	return func(p *Parser) { p.readFile = readFile }
}

// WithSleep replaces the delay used between empty reads.
func WithSleep(sleep func(context.Context, time.Duration) error) ParserOption {
	return func(p *Parser) { p.sleep = sleep }
}

// NewParser creates a parser backed by cache.
func NewParser(cache *ParseCache, logger logging.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = logging.Nop()
	}

	p := &Parser{
		cache:    cache,
		logger:   logger.WithComponent("parser"),
		stat:     os.Stat,
		readFile: os.ReadFile,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Parse returns the normalized icon for path, or nil when the file cannot
// be used. Failures are logged and never propagate.
func (p *Parser) Parse(ctx context.Context, path string) *ParsedIcon {
	icon, err := p.ParseFile(ctx, path)
	if err != nil {
		p.logger.Warn(ctx, err, "Skipping icon", "file", path)
		return nil
	}
	return &icon
}

// ParseFile is Parse with the failure reason returned. Panics raised while
// parsing are converted into errors.
func (p *Parser) ParseFile(ctx context.Context, path string) (icon ParsedIcon, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = spriteerrors.NewBuildError(spriteerrors.ErrCodeParsePanic, fmt.Sprintf("panic while parsing: %v", r), nil).WithFile(path)
		}
	}()

	info, err := p.stat(path)
	if err != nil {
		return ParsedIcon{}, spriteerrors.NewIOError(spriteerrors.ErrCodeInvalidPath, "cannot stat icon", err).WithFile(path)
	}
	if info.Size() > MaxIconSize {
		return ParsedIcon{}, spriteerrors.NewParseError(spriteerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("icon is %d bytes, limit is %d", info.Size(), MaxIconSize)).WithFile(path)
	}

	key := CacheKey(path, info.ModTime().UnixNano(), p.optimize)
	if cached, ok := p.cache.Get(key); ok {
		return cached, nil
	}

	content, err := p.readNonEmpty(ctx, path)
	if err != nil {
		return ParsedIcon{}, err
	}

	if !svg.HasRoot(content) {
		return ParsedIcon{}, spriteerrors.NewParseError(spriteerrors.ErrCodeMissingRoot,
			"file has no <svg> root element").WithFile(path)
	}

	viewBox, found := svg.ExtractViewBox(content)
	if !found {
		p.logger.Warn(ctx, nil, "Icon has no viewBox, using default", "file", path, "viewBox", viewBox)
	}

	inner, ok := svg.ExtractInner(content)
	if !ok {
		return ParsedIcon{}, spriteerrors.NewParseError(spriteerrors.ErrCodeMalformed,
			"cannot find matching </svg> closing tag").WithFile(path)
	}

	icon = ParsedIcon{ViewBox: viewBox, Content: svg.Sanitize(inner)}
	if p.optimize {
		icon.Content = p.optimizeContent(ctx, path, icon)
	}

	p.cache.Set(key, path, icon)
	return icon, nil
}

func (p *Parser) readNonEmpty(ctx context.Context, path string) (string, error) {
	for attempt := 1; ; attempt++ {
		data, err := p.readFile(path)
		if err != nil {
			return "", spriteerrors.NewIOError(spriteerrors.ErrCodeInvalidPath, "cannot read icon", err).WithFile(path)
		}
		if strings.TrimSpace(string(data)) != "" {
			return string(data), nil
		}
		if attempt >= EmptyReadAttempts {
			return "", spriteerrors.NewParseError(spriteerrors.ErrCodeFileEmpty, "file is empty").WithFile(path)
		}
		if err := p.sleep(ctx, EmptyRetryDelay); err != nil {
			return "", err
		}
	}
}

// optimizeContent runs the optimizer over a standalone document and returns
// the re-sanitized inner markup. Any failure keeps the unoptimized content.
func (p *Parser) optimizeContent(ctx context.Context, path string, icon ParsedIcon) string {
	opt := p.optimizer.Optimizer(ctx)
	if !opt.Available() {
		return icon.Content
	}

	out, err := opt.Optimize(ctx, svg.Wrap(icon.ViewBox, icon.Content))
	if err != nil {
		p.logger.Warn(ctx, err, "Optimizer failed, using unoptimized icon", "file", path, "engine", opt.Name())
		return icon.Content
	}

	inner, ok := svg.ExtractInner(out)
	if !ok {
		p.logger.Warn(ctx, nil, "Optimizer output has no <svg> root, using unoptimized icon",
			"file", path, "engine", opt.Name())
		return icon.Content
	}

	return svg.Sanitize(inner)
}

// ParseAll parses paths concurrently and returns the icons that parsed,
// in the order of paths.
func (p *Parser) ParseAll(ctx context.Context, paths []string) []Icon {
	parsed := make([]*ParsedIcon, len(paths))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrentParses)

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			parsed[i] = p.Parse(ctx, path)
		}(i, path)
	}
	wg.Wait()

	icons := make([]Icon, 0, len(paths))
	for i, icon := range parsed {
		if icon != nil {
			icons = append(icons, Icon{Path: paths[i], ParsedIcon: *icon})
		}
	}
	return icons
}
