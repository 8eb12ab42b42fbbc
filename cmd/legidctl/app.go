package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jrsteele09/go-legid-client/api"
	"github.com/jrsteele09/go-legid-client/internal/config"
	"github.com/jrsteele09/go-legid-client/internal/logging"
	"github.com/jrsteele09/go-legid-client/sessionsync"
	"github.com/jrsteele09/go-legid-client/snapshot"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const configEnvVar = "LEGID_CONFIG"

// app is everything a command needs. It is built per invocation and
// hydrated from the snapshot store, so consecutive commands share a session.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	sync   *sessionsync.Synchronizer
	out    io.Writer
}

type appLoader func(cmd *cobra.Command) (*app, error)

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(configEnvVar)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg, cmd.ErrOrStderr())

	client, err := api.NewClientFromConfig(cfg, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	storeOptions := []snapshot.FileStoreOption{snapshot.WithNamespace(cfg.GetSnapshotNamespace())}
	if secret := cfg.GetSnapshotSecret(); secret != "" {
		sealer, err := snapshot.NewSealer(secret)
		if err != nil {
			return nil, err
		}
		storeOptions = append(storeOptions, snapshot.WithSealer(sealer))
	}
	store, err := snapshot.NewFileStore(cfg.GetSnapshotDir(), storeOptions...)
	if err != nil {
		return nil, err
	}

	s, err := sessionsync.New(sessionsync.NewState(), client, store, sessionsync.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	restored := s.Hydrate()
	logger.Debug().Bool("restored", restored).Str("dir", cfg.GetSnapshotDir()).Msg("session hydrated")

	return &app{cfg: cfg, logger: logger, sync: s, out: cmd.OutOrStdout()}, nil
}

// withApp adapts a command body to cobra, loading the app first and
// disposing of it afterwards.
func withApp(load appLoader, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := load(cmd)
		if err != nil {
			return err
		}
		defer a.sync.Dispose()
		return fn(cmd, a, args)
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("[app.printJSON] %w", err)
	}
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
