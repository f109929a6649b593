package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gemsieve/gemsieve/internal/api"
)

var (
	webHost   string
	webPort   int
	webReload bool
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Start the admin portal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if webHost != "" {
			a.cfg.Server.Host = webHost
		}
		if webPort != 0 {
			a.cfg.Server.Port = webPort
		}

		provider, spec, err := a.aiProvider("")
		if err != nil {
			return err
		}
		mgr, hub, err := a.newPipeline(provider, spec)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		mgr.Start(ctx)

		srv := api.NewServer(a.cfg.Server, api.NewHandlers(a.repos, mgr, hub))
		fmt.Printf("Starting GemSieve Admin at http://%s\n", a.cfg.Server.Addr())

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		fmt.Println("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	webCmd.Flags().StringVar(&webHost, "host", "", "bind host (default from config)")
	webCmd.Flags().IntVarP(&webPort, "port", "p", 0, "bind port (default from config)")
	webCmd.Flags().BoolVar(&webReload, "reload", false, "accepted for parity with dev tooling; the Go server has no reloader")
}
