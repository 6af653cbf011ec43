package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/denis-mitin/go-identity-sdk/api"
	"github.com/denis-mitin/go-identity-sdk/bridge"
	"github.com/denis-mitin/go-identity-sdk/flow"
	"github.com/denis-mitin/go-identity-sdk/ids"
	"github.com/denis-mitin/go-identity-sdk/internal/config"
	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/provider/webprovider"
	"github.com/denis-mitin/go-identity-sdk/securestore"
	"github.com/denis-mitin/go-identity-sdk/securestore/filestore"
	"github.com/denis-mitin/go-identity-sdk/securestore/memstore"
	"github.com/denis-mitin/go-identity-sdk/securestore/redisstore"
	"github.com/denis-mitin/go-identity-sdk/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running demo: %s\n", err)
	}
	log.Printf("Demo finished\n")
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

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	store, err := buildStore(c)
	if err != nil {
		return fmt.Errorf("build secure store: %w", err)
	}

	sessions := session.NewManager(store, session.WithLogger(logger))
	sessions.Subscribe(func(change session.Change) {
		logger.Info().Int("kind", int(change.Kind)).Str("reason", change.Reason).Msg("session change")
	})

	apiKey := c.GetAPIKey()
	if apiKey == "" {
		// The demo can still exercise the bridge without platform calls.
		apiKey = "demo-api-key"
	}
	client, err := api.NewHTTPClient(apiKey, c.GetAPIDomain(), sessions, api.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build api client: %w", err)
	}

	idStore := ids.NewStore(store, "com.identity.sdk.ids")

	dispatcher := bridge.NewDispatcher(&consoleScript{}, bridge.WithLogger(logger))
	defer dispatcher.Close()

	err = bridge.RegisterStandardActions(dispatcher, bridge.ActionConfig{
		Sessions: sessions,
		Client:   api.NewInterceptor(client, sessions),
		IDs:      idStore,
		Log:      logger,
	})
	if err != nil {
		return fmt.Errorf("register bridge actions: %w", err)
	}

	ctx := context.Background()
	dispatcher.HandleMessage(ctx, []byte(`{"action":"is_session_valid","callbackId":"demo-1","parameters":{}}`))
	dispatcher.HandleMessage(ctx, []byte(`{"action":"get_ids","callbackId":"demo-2","parameters":{}}`))

	// Bridge handlers resolve asynchronously.
	time.Sleep(500 * time.Millisecond)

	return runLoginFlow(ctx, c, logger, sessions, client)
}

// runLoginFlow walks one login attempt through the state machine. The console
// surface backs out immediately, so the flow ends in a clean cancellation
// without any platform traffic.
func runLoginFlow(ctx context.Context, c config.Config, logger zerolog.Logger, sessions *session.Manager, client api.Client) error {
	registry, err := provider.NewRegistry(
		webprovider.New(&consoleSurface{}, c.GetAPIKey(), c.GetAPIDomain()),
	)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}

	controller, err := flow.NewController(registry, sessions, client,
		flow.WithTimeout(c.GetFlowTimeout()),
		flow.WithLogger(logger),
		flow.WithObserver(func(e flow.Event) {
			logger.Info().Str("flowId", e.FlowID).Str("state", e.State.String()).Msg("flow transition")
		}),
	)
	if err != nil {
		return fmt.Errorf("build flow controller: %w", err)
	}

	f, err := controller.BeginLogin(ctx, "demo", nil)
	if err != nil {
		return fmt.Errorf("begin login: %w", err)
	}
	if err := controller.SelectProvider(f, webprovider.DefaultProviderID); err != nil {
		return fmt.Errorf("select provider: %w", err)
	}

	event := <-f.Done()
	logger.Info().Str("state", event.State.String()).Err(event.Err).Msg("login flow finished")
	return nil
}

// consoleSurface stands in for an embedded login page and backs out at once.
type consoleSurface struct{}

func (consoleSurface) Present(_ context.Context, loginURL string) (url.Values, error) {
	fmt.Printf("would present login page: %s\n", loginURL)
	return url.Values{"canceled": {"1"}}, nil
}

func (consoleSurface) Dismiss() {}

// buildStore prefers a configured redis backend, then the encrypted file
// store when a device secret is set, falling back to the in-memory store.
func buildStore(c config.Config) (securestore.Store, error) {
	if addr := c.GetRedisAddr(); addr != "" {
		return redisstore.New(redis.NewClient(&redis.Options{Addr: addr})), nil
	}
	if secret := c.GetDeviceSecret(); secret != "" {
		return filestore.New(c.GetStorageDir(), []byte(secret))
	}
	return memstore.New(), nil
}

// consoleScript stands in for a web view, printing bridge traffic.
type consoleScript struct{}

func (consoleScript) DeliverResponse(resp bridge.Response) {
	raw, _ := json.Marshal(resp)
	fmt.Printf("bridge response: %s\n", raw)
}

func (consoleScript) DeliverEvent(event bridge.Event) {
	raw, _ := json.Marshal(event)
	fmt.Printf("bridge event: %s\n", raw)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
