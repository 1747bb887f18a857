package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/store/internal/infra/config"
	"github.com/mkrupp/store/internal/infra/logging"
	"github.com/mkrupp/store/internal/infra/transport/http"
	"github.com/mkrupp/store/internal/repo/user"
	"github.com/mkrupp/store/internal/svc/identitysvc"
)

const (
	appName = "store"
	svcName = "identitysvc"
)

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig            `envPrefix:"LOG_"      toml:"log"`
	Identity identitysvc.IdentityConfig      `envPrefix:"IDENTITY_" toml:"identity"`
	HTTP     identitysvc.HTTPTransportConfig `envPrefix:"HTTP_"     toml:"http"`
	User     user.RepositoryConfig           `envPrefix:"USER_"     toml:"user"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		fmt.Fprintln(os.Stderr, "parse config:", err)
		os.Exit(2)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.identitysvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	repoFactory, err := user.RepositoryFactoryFor(cfg.User)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}

	identitySvc, err := identitysvc.NewIdentityService(ctx, repoFactory, cfg.Identity)
	if err != nil {
		return fmt.Errorf("new identity service: %w", err)
	}
	defer identitySvc.Close()

	if cfg.Identity.AdminLoginID != "" {
		if err := identitySvc.EnsurePrivilegedUser(ctx, cfg.Identity.AdminLoginID, cfg.Identity.AdminPassword); err != nil {
			return fmt.Errorf("seed privileged user: %w", err)
		}
	}

	httpTransport := identitysvc.NewHTTPTransport(identitySvc)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
