package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ftmsg/internal/config"
	"ftmsg/internal/transport"
	"ftmsg/pkg/ftmsg"
)

var (
	autoAccept bool
	echo       bool
	watch      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the broker and serve clients until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := ftmsg.NewLogger(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, log)
	},
}

func init() {
	runCmd.Flags().BoolVar(&autoAccept, "auto-accept", false, "accept every new client while the lock is engaged")
	runCmd.Flags().BoolVar(&echo, "echo", false, "echo application bodies back; requests get a correlated reply")
	runCmd.Flags().BoolVar(&watch, "watch", false, "reload the config file and re-apply the lock on change")
}

// loadConfig merges the config file with flag and FTMSG_* env overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	path := viper.GetString("config")
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if explicit, page := viper.GetString("url"), viper.GetString("page-url"); explicit != "" || page != "" {
		cfg.URL = config.ResolveEndpoint(explicit, page)
	}
	if v := viper.GetString("transport"); v != "" {
		cfg.Transport = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v := viper.GetString("metrics"); v != "" {
		cfg.Metrics.Listen = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	dial, err := transport.NewDialer(cfg.Transport, transport.Options{DialTimeout: cfg.DialTimeout})
	if err != nil {
		return err
	}
	lock, err := cfg.InitialLock()
	if err != nil {
		return err
	}

	if cfg.Metrics.Listen != "" {
		ftmsg.EnablePrometheusMetrics()
		go func() {
			if err := ftmsg.StartMetricsServer(ctx, cfg.Metrics.Listen); err != nil {
				log.Error("metrics.server.stopped", zap.Error(err))
			}
		}()
		log.Info("metrics.listen", zap.String("addr", cfg.Metrics.Listen))
	}

	c := ftmsg.New(cfg.URL,
		ftmsg.WithLogger(log),
		ftmsg.WithDialer(dial),
		ftmsg.WithReconnectDelay(cfg.ReconnectDelay),
		ftmsg.WithReconnectJitter(cfg.ReconnectJitter),
	)
	attachHandlers(ctx, c, log)

	if err := c.Mount(); err != nil {
		return err
	}
	defer func() { _ = c.Unmount() }()

	lockCh := make(chan ftmsg.Lock, 1)
	lockCh <- lock
	if watch && viper.GetString("config") != "" {
		err := config.Watch(ctx, viper.GetString("config"), func(next *config.Config, err error) {
			if err != nil {
				log.Warn("config.reload.failed", zap.Error(err))
				return
			}
			l, err := next.InitialLock()
			if err != nil {
				log.Warn("config.reload.lock", zap.Error(err))
				return
			}
			select {
			case <-lockCh:
			default:
			}
			lockCh <- l
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("ftmsg.shutdown")
			return nil
		case l := <-lockCh:
			applyLock(ctx, c, l, cfg.ReconnectDelay, log)
		}
	}
}

// applyLock retries until the broker has the lock or ctx ends.
func applyLock(ctx context.Context, c *ftmsg.Client, l ftmsg.Lock, retry time.Duration, log *zap.Logger) {
	for {
		err := c.SetLock(ctx, l)
		if err == nil || ctx.Err() != nil {
			return
		}
		if !errors.Is(err, ftmsg.ErrSocketNotReady) {
			log.Warn("ftmsg.lock.failed", zap.Stringer("lock", l), zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func attachHandlers(ctx context.Context, c *ftmsg.Client, log *zap.Logger) {
	c.AddConnectionListener(func(conn *ftmsg.Connection) {
		id := conn.ID()
		conn.AddCloseListener(func() { log.Info("client.closed", zap.String("client", id)) })
		conn.AddLifecycleListener(func(paused bool) {
			log.Info("client.lifecycle", zap.String("client", id), zap.Bool("paused", paused))
		})
		if autoAccept && c.Lock().Engaged() && !conn.Accepted() {
			if err := conn.Accept(ctx); err != nil {
				log.Warn("client.accept.failed", zap.String("client", id), zap.Error(err))
			}
		}
	})
	if !echo {
		return
	}
	c.AddMessageListener(func(m any) {
		var err error
		switch v := m.(type) {
		case *ftmsg.Request:
			err = v.Respond(ctx, v.Body)
		case json.RawMessage:
			err = c.SendMessage(ctx, v, "")
		}
		if err != nil {
			log.Warn("client.echo.failed", zap.Error(err))
		}
	})
}
