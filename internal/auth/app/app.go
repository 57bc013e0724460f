// Package app wires the credential store, the federation clients and the
// refreshers into one ready-to-use application.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/device"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/flow"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/launcher"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/live"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/minecraft"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/store"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/xbox"
	"github.com/deepslate-launcher/deepslate-core/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application holds the assembled components. Store is the entry point
// for everyday credential access; Flow drives interactive logins.
type Application struct {
	cfg    Config
	logger *slog.Logger

	Store    *store.Store
	Flow     *flow.Orchestrator
	Device   *device.Manager
	Launcher *launcher.Refresher
}

// New builds the application from cfg. The store and the flow
// orchestrator reference each other, so the store's refreshers are bound
// after both exist.
func New(cfg Config) (*Application, error) {
	mode := domain.LauncherMode(cfg.LauncherMode)
	switch mode {
	case domain.ModeProduction, domain.ModeExperimental:
	default:
		return nil, fmt.Errorf("app: unknown launcher mode %q", cfg.LauncherMode)
	}

	logger := slogx.New(slogx.Config{
		Service: "deepslate-core",
		Version: BuildVersion,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	st, err := store.Open(cfg.StorePath, mode, logger)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	xboxClient := xbox.New(xbox.Config{
		DeviceAuthURL:       cfg.DeviceAuthURL,
		SisuAuthenticateURL: cfg.SisuAuthenticateURL,
		SisuAuthorizeURL:    cfg.SisuAuthorizeURL,
		XstsAuthorizeURL:    cfg.XstsAuthorizeURL,
		HTTPClient:          httpClient,
	})
	liveClient := live.New(live.Config{
		TokenURL:   cfg.OAuthTokenURL,
		HTTPClient: httpClient,
	})
	mcClient := minecraft.New(minecraft.Config{
		BaseURL:    cfg.MinecraftBaseURL,
		HTTPClient: httpClient,
	})

	deviceManager := device.NewManager(st, xboxClient, logger)
	orchestrator := flow.New(deviceManager, xboxClient, liveClient, mcClient, st, logger)
	st.SetRefresher(orchestrator)

	issuer := launcher.NewHTTPIssuer(launcher.Config{
		BaseURL:    cfg.LauncherBaseURL,
		HTTPClient: httpClient,
	})
	launcherRefresher := launcher.NewRefresher(issuer, deviceManager, logger)
	st.SetLauncherRefresher(launcherRefresher)

	return &Application{
		cfg:      cfg,
		logger:   logger,
		Store:    st,
		Flow:     orchestrator,
		Device:   deviceManager,
		Launcher: launcherRefresher,
	}, nil
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Mode returns the configured launcher token mode.
func (app *Application) Mode() domain.LauncherMode {
	return domain.LauncherMode(app.cfg.LauncherMode)
}
