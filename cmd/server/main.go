package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/coreos/go-oidc/v3/oidc"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/theavidstallion/quantrust/activity"
	fakelogrepo "github.com/theavidstallion/quantrust/activity/repofake"
	"github.com/theavidstallion/quantrust/identity"
	fakeidentityrepo "github.com/theavidstallion/quantrust/identity/repofake"
	"github.com/theavidstallion/quantrust/internal/config"
	"github.com/theavidstallion/quantrust/internal/obs"
	"github.com/theavidstallion/quantrust/internal/store/postgres"
	"github.com/theavidstallion/quantrust/server"
	"github.com/theavidstallion/quantrust/session"
	"github.com/theavidstallion/quantrust/sso"
	"github.com/theavidstallion/quantrust/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	displayAppname(cfg.AppName)

	logger := obs.NewLogger(cfg.Env)
	obs.Init()

	identities, logs, closeStore, err := buildStores(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("token.NewIssuer: %w", err)
	}

	var broker session.Broker
	if cfg.SSOConfigured() {
		broker, err = buildBroker(cfg, identities)
		if err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("Keycloak endpoint not configured, SSO login disabled")
	}

	recorder := activity.NewRecorder(logs, logger)
	sessions, err := session.NewService(session.Repos{Identities: identities, Activity: logs}, issuer, broker, recorder)
	if err != nil {
		return fmt.Errorf("session.NewService: %w", err)
	}

	handler, err := server.New(cfg, sessions, logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.Addr, Handler: handler}
	if cfg.TLSConfigured() {
		tlsConfig, err := cfg.TLSConfig()
		if err != nil {
			return fmt.Errorf("config.TLSConfig: %w", err)
		}
		httpServer.TLSConfig = tlsConfig
	}

	go listenAndServe(httpServer, cfg, logger)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// buildStores returns the identity and activity repositories, backed by
// PostgreSQL when a DSN is configured and by in-memory fakes otherwise.
func buildStores(cfg config.Config, logger zerolog.Logger) (identity.Repo, activity.Repo, func(), error) {
	if cfg.PostgresDSN == "" {
		logger.Warn().Msg("PG_DSN not set, using in-memory stores")
		return fakeidentityrepo.NewFakeIdentityRepo(), fakelogrepo.NewFakeLogRepo(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	store := postgres.New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("db.PingContext: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return store.Identities(), store.Activity(), func() { db.Close() }, nil
}

func buildBroker(cfg config.Config, identities identity.Repo) (*sso.Broker, error) {
	brokerCfg := sso.Config{
		TokenURL:     cfg.KeycloakTokenURL,
		ClientID:     cfg.KeycloakClientID,
		ClientSecret: cfg.KeycloakSecret,
		RedirectURI:  cfg.KeycloakRedirectURI,
		Scopes:       cfg.KeycloakScopes,
		Timeout:      cfg.KeycloakTimeout,
	}

	var options []sso.BrokerOption
	if cfg.SSOVerifyTokens {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.KeycloakTimeout)
		defer cancel()
		provider, err := oidc.NewProvider(ctx, cfg.KeycloakIssuerURL)
		if err != nil {
			return nil, fmt.Errorf("oidc.NewProvider: %w", err)
		}
		verifier := provider.Verifier(&oidc.Config{ClientID: cfg.KeycloakClientID})
		options = append(options, sso.WithIDTokenVerifier(verifier))
	}

	broker, err := sso.NewBroker(brokerCfg, identities, options...)
	if err != nil {
		return nil, fmt.Errorf("sso.NewBroker: %w", err)
	}
	return broker, nil
}

func listenAndServe(httpServer *http.Server, cfg config.Config, logger zerolog.Logger) error {
	if cfg.TLSConfigured() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Server listening with mTLS")
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server.ListenAndServeTLS %w", err)
		}
		return nil
	}
	logger.Warn().Str("addr", httpServer.Addr).Msg("Server listening without TLS, client certificate gate inactive")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
