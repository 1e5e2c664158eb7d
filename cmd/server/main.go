package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-login-gateway/exchange"
	"github.com/jrsteele09/go-login-gateway/flow"
	"github.com/jrsteele09/go-login-gateway/internal/config"
	"github.com/jrsteele09/go-login-gateway/server"
	"github.com/jrsteele09/go-login-gateway/sessions/sqlitestore"
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

	c := config.New()
	displayAppname(c.GetAppName())

	// Identifies this process instance in every profile it binds. Fixed at
	// startup and injected, never global mutable state.
	serverInstanceID := uuid.New().String()

	if err := os.MkdirAll(filepath.Dir(c.GetSessionStorePath()), 0o750); err != nil {
		return fmt.Errorf("creating session store directory: %w", err)
	}
	store, err := sqlitestore.Open(c.GetSessionStorePath(), c.GetSessionMaxAge())
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()
	store.StartPruner(c.GetSessionPruneInterval())

	exchanger := exchange.NewClient(exchange.Config{
		TokenURL:   c.GetExchangeTokenURL(),
		ClientID:   c.GetExchangeClientID(),
		OrgHandle:  c.GetOrganizationHandle(),
		Scopes:     c.GetExchangeScopes(),
		HTTPClient: &http.Client{Timeout: c.GetHTTPTimeout()},
	})

	flowService, err := flow.NewService(store, exchanger, flow.Config{
		ClientID:         c.GetClientID(),
		AuthorizeURL:     c.GetAuthorizeURL(),
		TokenURL:         c.GetTokenURL(),
		RedirectURL:      c.GetCallbackURL(),
		Scopes:           c.GetScopes(),
		ServerInstanceID: serverInstanceID,
		HTTPClient:       &http.Client{Timeout: c.GetHTTPTimeout()},
	})
	if err != nil {
		return fmt.Errorf("creating flow service: %w", err)
	}

	srv, err := server.New(c, flowService, store, serverInstanceID)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
