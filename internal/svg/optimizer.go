package svg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minifysvg "github.com/tdewolff/minify/v2/svg"
)

// Optimizer engine names.
const (
	EngineBuiltin = "builtin"
	EngineSVGO    = "svgo"
)

const svgMimeType = "image/svg+xml"

// Optimizer rewrites a standalone SVG document into a smaller equivalent.
type Optimizer interface {
	// Name identifies the engine in logs.
	Name() string
	// Available reports whether Optimize does any work.
	Available() bool
	Optimize(ctx context.Context, document string) (string, error)
}

// unavailable is the identity optimizer used when no engine can be loaded.
type unavailable struct {
	reason string
}

// Unavailable returns an optimizer that passes documents through unchanged.
func Unavailable(reason string) Optimizer {
	return unavailable{reason: reason}
}

func (u unavailable) Name() string { return "none" }
func (u unavailable) Available() bool { return false }
func (u unavailable) String() string { return "unavailable: " + u.reason }
func (u unavailable) Optimize(_ context.Context, document string) (string, error) {
	return document, nil
}

// MinifyOptimizer runs the tdewolff/minify SVG minifier in process.
type MinifyOptimizer struct {
	m *minify.M
}

// NewMinifyOptimizer configures the builtin engine. Recognised options are
// "precision" (significant digits for numbers, 0 keeps all) and
// "keep_comments".
func NewMinifyOptimizer(options map[string]interface{}) (*MinifyOptimizer, error) {
	precision, err := intOption(options, "precision", 0)
	if err != nil {
		return nil, err
	}
	keepComments, err := boolOption(options, "keep_comments", false)
	if err != nil {
		return nil, err
	}

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add(svgMimeType, &minifysvg.Minifier{
		Precision:    precision,
		KeepComments: keepComments,
	})

	return &MinifyOptimizer{m: m}, nil
}

func (o *MinifyOptimizer) Name() string { return EngineBuiltin }
func (o *MinifyOptimizer) Available() bool { return true }

// Optimize minifies document.
func (o *MinifyOptimizer) Optimize(_ context.Context, document string) (string, error) {
	out, err := o.m.String(svgMimeType, document)
	if err != nil {
		return "", spriteerrors.NewOptimizerError("minify failed", err)
	}
	return out, nil
}

// CommandOptimizer pipes documents through the svgo command line tool.
type CommandOptimizer struct {
	command string
	args    []string
}

// NewCommandOptimizer configures the svgo engine. Recognised options are
// "config" (path to an svgo config file) and "multipass".
func NewCommandOptimizer(command string, options map[string]interface{}) (*CommandOptimizer, error) {
	args := []string{"--input", "-", "--output", "-"}

	configPath, err := stringOption(options, "config", "")
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	multipass, err := boolOption(options, "multipass", false)
	if err != nil {
		return nil, err
	}
	if multipass {
		args = append(args, "--multipass")
	}

	return &CommandOptimizer{command: command, args: args}, nil
}

func (o *CommandOptimizer) Name() string { return EngineSVGO }
func (o *CommandOptimizer) Available() bool { return true }

// Optimize runs the command with document on stdin.
func (o *CommandOptimizer) Optimize(ctx context.Context, document string) (string, error) {
	cmd := exec.CommandContext(ctx, o.command, o.args...)
	cmd.Stdin = strings.NewReader(document)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "svgo exited with an error"
		}
		return "", spriteerrors.NewOptimizerError(msg, err)
	}

	return stdout.String(), nil
}

// Resolver loads the configured optimizer lazily, at most once. A session
// owns one Resolver; sessions never share a resolution.
type Resolver struct {
	engine   string
	options  map[string]interface{}
	logger   logging.Logger
	lookPath func(string) (string, error)

	once      sync.Once
	optimizer Optimizer
}

// NewResolver creates a resolver for engine with options passed verbatim.
func NewResolver(engine string, options map[string]interface{}, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		engine:   engine,
		options:  options,
		logger:   logger.WithComponent("optimizer"),
		lookPath: exec.LookPath,
	}
}

// NewStaticResolver returns a resolver that always yields optimizer.
func NewStaticResolver(optimizer Optimizer) *Resolver {
	r := &Resolver{logger: logging.Nop()}
	r.once.Do(func() { r.optimizer = optimizer })
	return r
}

// Optimizer returns the resolved optimizer. When the engine cannot be
// loaded an identity optimizer is returned and a notice is logged once.
func (r *Resolver) Optimizer(ctx context.Context) Optimizer {
	r.once.Do(func() {
		opt, err := r.load()
		if err != nil {
			r.logger.Info(ctx, "SVG optimizer unavailable, icons will not be optimized",
				"engine", r.engine, "reason", err.Error())
			r.optimizer = Unavailable(err.Error())
			return
		}
		r.logger.Debug(ctx, "SVG optimizer loaded", "engine", opt.Name())
		r.optimizer = opt
	})
	return r.optimizer
}

func (r *Resolver) load() (Optimizer, error) {
	switch r.engine {
	case "", EngineBuiltin:
		return NewMinifyOptimizer(r.options)
	case EngineSVGO:
		path, err := r.lookPath("svgo")
		if err != nil {
			return nil, fmt.Errorf("svgo not found in PATH: %w", err)
		}
		return NewCommandOptimizer(path, r.options)
	default:
		return nil, fmt.Errorf("unknown optimizer engine %q", r.engine)
	}
}
