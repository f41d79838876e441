package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/conneroisu/iconsprite/internal/build"
	"github.com/conneroisu/iconsprite/internal/config"
	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/plugin"
	"github.com/conneroisu/iconsprite/internal/server"
)

// ServeService handles development server business logic
type ServeService struct {
	config *config.Config
	logger logging.Logger
}

// NewServeService creates a new serve service
func NewServeService(cfg *config.Config, logger logging.Logger) *ServeService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ServeService{
		config: cfg,
		logger: logger.WithComponent("serve"),
	}
}

// ServeOptions contains options for the serve process
type ServeOptions struct {
	ProjectRoot string
	// Listener is used instead of listening on the configured address.
	Listener net.Listener
	// Ready, if set, receives the server URL once pages are being served.
	Ready func(url string)
}

// ServeResult contains the result of a serve operation
type ServeResult struct {
	ServerURL string
	IconCount int
}

// Serve builds the sprite, starts the development server with live
// updates, and blocks until ctx is done or the process is interrupted.
func (s *ServeService) Serve(ctx context.Context, opts ServeOptions) (*ServeResult, error) {
	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	p := plugin.New(s.config, s.logger)
	if err := p.ConfigResolved(root, build.ModeServe); err != nil {
		return nil, err
	}
	defer p.Close()

	built, err := p.BuildStart(ctx)
	if err != nil {
		return nil, err
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", s.config.Address())
		if err != nil {
			return nil, spriteerrors.NewIOError(spriteerrors.ErrCodeServerStart,
				fmt.Sprintf("failed to listen on %s; choose another server.port or free the port", s.config.Address()), err)
		}
	}

	result := &ServeResult{
		ServerURL: "http://" + ln.Addr().String(),
		IconCount: built.Sprite.Count(),
	}

	serverCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(s.config, p, s.logger)
	if err := p.ConfigureServer(serverCtx, srv.Hub()); err != nil {
		ln.Close()
		return nil, err
	}

	if opts.Ready != nil {
		opts.Ready(result.ServerURL)
	}

	if err := srv.Serve(serverCtx, ln); err != nil && !errors.Is(err, context.Canceled) {
		return result, spriteerrors.NewIOError(spriteerrors.ErrCodeServerStart, "server stopped", err)
	}
	return result, nil
}
