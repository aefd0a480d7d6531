package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cagkantasci/smartop/apiclient"
	"github.com/cagkantasci/smartop/internal/backendfake"
	"github.com/cagkantasci/smartop/internal/logger"
	"github.com/cagkantasci/smartop/users"
	"github.com/rs/zerolog/log"
)

// envFakeBackend, when set to a listen address such as ":3000", serves the
// in-process development backend seeded with FLEET_EMAIL / FLEET_PASSWORD.
const envFakeBackend = "FLEET_FAKE_BACKEND_ADDR"

func startFakeBackend() (stop func(), err error) {
	addr := os.Getenv(envFakeBackend)
	if addr == "" {
		return func() {}, nil
	}

	backend := backendfake.NewServer(backendfake.WithLogger(logger.Component("backendfake")))
	if email, password := os.Getenv(envEmail), os.Getenv(envPassword); email != "" && password != "" {
		if _, err := backend.AddUser(users.User{Email: email, FirstName: "Demo", LastName: "Manager", Role: users.RoleManager}, password); err != nil {
			return nil, fmt.Errorf("seed fake backend: %w", err)
		}
	}
	backend.SetMachines(
		apiclient.Machine{ID: "m-1", Name: "Excavator 320", Status: "active"},
		apiclient.Machine{ID: "m-2", Name: "Loader 950", Status: "active"},
		apiclient.Machine{ID: "m-3", Name: "Grader 140", Status: "maintenance"},
	)
	backend.SetSubmissions(
		apiclient.Submission{ID: "s-1", MachineID: "m-1", Status: apiclient.SubmissionPending},
		apiclient.Submission{ID: "s-2", MachineID: "m-2", Status: apiclient.SubmissionApproved},
	)

	server := &http.Server{Addr: addr, Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go listenAndServe(server)
	return func() {
		if err := shutdown(server); err != nil {
			log.Err(err).Msg("fake backend shutdown")
		}
	}, nil
}

func listenAndServe(server *http.Server) {
	log.Info().Msgf("Fake backend listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server.ListenAndServe")
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
