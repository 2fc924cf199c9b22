package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/api"
	"github.com/sells-group/hitrate-cli/internal/dashboard"
	"github.com/sells-group/hitrate-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scored equipment over HTTP",
	Long:  "Loads the configured sources, then serves the scored equipment, the name mapping and its statistics as a JSON API. Reloads on POST /api/reload and on the configured cron schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initApp(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// A failed first load is not fatal: the API answers 503 until a
		// reload succeeds.
		if _, err := env.Service.Reload(ctx); err != nil {
			zap.L().Error("initial load failed", zap.Error(err))
		}

		scheduler, err := startReloadSchedule(ctx, cfg.Server.ReloadCron, env.Service, env.Store)
		if err != nil {
			return err
		}
		if scheduler != nil {
			defer func() { <-scheduler.Stop().Done() }()
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.New(env.Service, api.Options{CORSOrigins: cfg.Server.CORSOrigins}).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// startReloadSchedule registers the periodic reload. An empty schedule disables
// it and returns a nil scheduler. Each run also prunes expired verdicts.
func startReloadSchedule(ctx context.Context, spec string, svc *dashboard.Service, st store.Store) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, eris.Wrapf(err, "parse reload schedule %q", spec)
	}

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() { scheduledReload(ctx, svc, st) }))
	c.Start()

	zap.L().Info("scheduled reloads enabled",
		zap.String("schedule", spec),
		zap.Time("next", schedule.Next(time.Now())),
	)
	return c, nil
}

func scheduledReload(ctx context.Context, svc *dashboard.Service, st store.Store) {
	if ctx.Err() != nil {
		return
	}
	if st != nil {
		n, err := st.DeleteExpiredVerdicts(ctx)
		if err != nil {
			zap.L().Warn("prune verdict cache failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("pruned verdict cache", zap.Int("deleted", n))
		}
	}
	if _, err := svc.Reload(ctx); err != nil {
		zap.L().Error("scheduled reload failed", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
