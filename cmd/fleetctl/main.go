package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"

	"github.com/cagkantasci/smartop/apiclient"
	"github.com/cagkantasci/smartop/counts"
	"github.com/cagkantasci/smartop/internal/config"
	"github.com/cagkantasci/smartop/internal/logger"
	"github.com/cagkantasci/smartop/push"
	"github.com/cagkantasci/smartop/securestore"
	"github.com/cagkantasci/smartop/sessions"
	"github.com/cagkantasci/smartop/token"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
)

const (
	envEmail        = "FLEET_EMAIL"
	envPassword     = "FLEET_PASSWORD"
	envLogoutOnExit = "FLEET_LOGOUT_ON_EXIT"

	taskRefreshCounts = "refresh-counts"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("fleetctl stopped with error")
	}
	log.Info().Msg("fleetctl stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	displayAppname(c.GetAppName())
	logger.New(c.GetEnv(), c.GetLogLevel())

	stopBackend, err := startFakeBackend()
	if err != nil {
		return err
	}
	defer stopBackend()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := wire(c)
	if err != nil {
		return err
	}
	defer app.manager.Close()

	if err := app.registrar.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("push init failed, continuing without a fresh token")
	}

	state := app.manager.CheckAuthStatus(ctx)
	if !state.IsAuthenticated() {
		state, err = loginFromEnv(ctx, app.manager)
		if err != nil {
			return err
		}
	}
	if !state.IsAuthenticated() {
		log.Warn().Msgf("not authenticated; set %s and %s to log in", envEmail, envPassword)
		return nil
	}
	log.Info().Str("user", state.User.FullName()).Str("role", string(state.User.Role)).Msg("session ready")
	if tok, err := app.tokens.OAuth2Token(ctx); err == nil && tok != nil && !tok.Expiry.IsZero() {
		log.Debug().Time("access_expires_at", tok.Expiry).Msg("access token expiry")
	}

	stopCounts := app.poller.Subscribe(func(n counts.Counts) {
		log.Info().Int("pending_checklists", n.PendingChecklists).Int("pending_approvals", n.PendingApprovals).Msg("badge counts")
	})
	defer stopCounts()
	stopSession := app.manager.Subscribe(func(s sessions.State) {
		if !s.IsAuthenticated() {
			log.Warn().Str("status", string(s.Status)).Msg("session ended")
			cancel()
		}
	})
	defer stopSession()

	app.poller.Start(ctx)
	waitForStopSignal(ctx)
	app.poller.Stop()

	if logoutOnExit() {
		app.manager.Logout(context.Background())
	}
	return nil
}

type application struct {
	tokens    *token.Store
	manager   *sessions.Manager
	registrar *push.Registrar
	poller    *counts.Poller
	hub       *push.Hub
}

func wire(c config.Config) (*application, error) {
	secure, err := securestore.NewFileStore(c.GetStorageDir(), c.GetStorageSecret())
	if err != nil {
		return nil, fmt.Errorf("open secure store: %w", err)
	}
	tokens := token.NewStore(secure)

	client, err := apiclient.New(c, tokens, apiclient.WithLogger(logger.Component("apiclient")))
	if err != nil {
		return nil, err
	}

	registrar := push.NewRegistrar(newEnvProvider(), secure, client, push.WithRegistrarLogger(logger.Component("push")))
	poller := counts.NewPoller(client, c.GetPollInterval(), counts.WithPollerLogger(logger.Component("counts")))

	hub := push.NewHub()
	if err := hub.RegisterBackgroundTask(taskRefreshCounts, func(ctx context.Context, _ push.Notification) error {
		poller.Refresh(ctx)
		return nil
	}); err != nil {
		return nil, err
	}
	hub.Subscribe(func(n push.Notification) {
		log.Info().Str("title", n.Title).Msg("notification received")
		if err := hub.RunBackgroundTask(context.Background(), taskRefreshCounts, n); err != nil {
			log.Err(err).Msg("background task failed")
		}
	})

	manager := sessions.NewManager(client, tokens, registrar,
		sessions.WithRegisterDelay(c.GetRegisterDelay()),
		sessions.WithManagerLogger(logger.Component("sessions")),
	)

	return &application{tokens: tokens, manager: manager, registrar: registrar, poller: poller, hub: hub}, nil
}

func loginFromEnv(ctx context.Context, manager *sessions.Manager) (sessions.State, error) {
	email, password := os.Getenv(envEmail), os.Getenv(envPassword)
	if email == "" || password == "" {
		return manager.State(), nil
	}
	if _, err := manager.Login(ctx, email, password); err != nil {
		return manager.State(), fmt.Errorf("login: %w", err)
	}
	return manager.State(), nil
}

func logoutOnExit() bool {
	v, err := strconv.ParseBool(os.Getenv(envLogoutOnExit))
	return err == nil && v
}

func waitForStopSignal(ctx context.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	select {
	case <-stop:
	case <-ctx.Done():
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
