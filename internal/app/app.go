package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/standings/internal/auth"
	"github.com/abrezinsky/standings/internal/cache"
	"github.com/abrezinsky/standings/internal/config"
	"github.com/abrezinsky/standings/internal/handlers"
	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/metrics"
	"github.com/abrezinsky/standings/internal/repository"
	"github.com/abrezinsky/standings/internal/scheduler"
	"github.com/abrezinsky/standings/internal/services"
	"github.com/abrezinsky/standings/pkg/mailer"
)

const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      *config.Config
	handlers *handlers.Handlers
	repo     *repository.Repository
	warmer   *scheduler.CacheWarmer
	baseURL  string
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg *config.Config, adminAuth *auth.Auth) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	metrics.Register()

	baseURL := defaultBaseURL(cfg.BaseURL, realNetworkProvider{})
	mail := newMailer(log, cfg)

	standingsService := services.NewStandingsService(log, repo, cache.New(cfg.CacheTTL, nil), cfg.Formats)
	qualificationService := services.NewQualificationService(log, repo, services.NewRepositoryNotifier(repo), mail, baseURL)
	invitationService := services.NewInvitationService(log, repo, mail, baseURL)

	a := &App{
		log:      log,
		cfg:      cfg,
		handlers: handlers.New(standingsService, qualificationService, invitationService, adminAuth, repo, log),
		repo:     repo,
		baseURL:  baseURL,
	}

	if !cfg.DisableWarmer {
		a.warmer, err = scheduler.New(log, standingsService, cfg.WarmInterval)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to initialize cache warmer: %w", err)
		}
	}

	return a, nil
}

func newMailer(log logger.Logger, cfg *config.Config) mailer.Client {
	if cfg.MailerURL == "" {
		log.Warn("No mail relay configured, emails will be logged only")
		return mailer.NewLogClient(log)
	}
	return mailer.NewHTTPClient(cfg.MailerURL, cfg.MailerToken, cfg.MailerFrom, log)
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// BaseURL returns the public base URL used in emails and invitation links
func (a *App) BaseURL() string {
	return a.baseURL
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.warmer != nil {
		if err := a.warmer.Shutdown(); err != nil {
			a.log.Warn("Failed to stop cache warmer", "error", err)
		}
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
}

// Run starts the cache warmer and the HTTP server, and blocks until ctx is
// cancelled or the server fails
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.warmer != nil {
		a.warmer.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", "addr", srv.Addr, "base_url", a.baseURL)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// defaultBaseURL swaps a localhost host for the detected LAN address, since
// links and QR codes in emails must resolve from other devices
func defaultBaseURL(baseURL string, provider networkProvider) string {
	if !strings.Contains(baseURL, "localhost") {
		return baseURL
	}
	ip := getPreferredIP(provider)
	if ip == "localhost" {
		return baseURL
	}
	return strings.Replace(baseURL, "localhost", ip, 1)
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IPv4 address for LAN access, preferring
// private ranges. Falls back to localhost.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String()
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}
