package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datalitbang/fenomena-insight/internal/insight"
	"github.com/datalitbang/fenomena-insight/internal/server"
	"github.com/datalitbang/fenomena-insight/internal/service"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the insight API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orch := service.NewOrchestrator(
			st, st,
			insight.New(st, st),
			service.Timeouts{
				Count:   time.Duration(cfg.Analysis.CountTimeoutSecs) * time.Second,
				Fetch:   time.Duration(cfg.Analysis.FetchTimeoutSecs) * time.Second,
				Process: time.Duration(cfg.Analysis.ProcessTimeoutSecs) * time.Second,
			},
		)

		api := server.New(orch, server.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RateLimit:      cfg.Server.RateLimit,
			RateBurst:      cfg.Server.RateBurst,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
