package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vango-dev/livebind/pkg/livesrv"
	"github.com/vango-dev/livebind/pkg/stream"
	"github.com/vango-dev/livebind/pkg/stream/s3watch"
)

func serveCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live value push server",
		Long: `Serve demo feeds over WebSocket at /live.

Always-on feeds:
  ticks   tick counter emitting once per --tick
  now     server wall clock, emitted with each tick

Optional feed (when --s3-bucket and --s3-key are set):
  s3      body of the S3 object, emitted whenever its ETag changes

Configuration may also come from a YAML file (--config); flags take
precedence over file values.`,
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.Flags().String("addr", ":8321", "listen address")
	cmd.Flags().Duration("tick", time.Second, "tick feed interval")
	cmd.Flags().String("s3-bucket", "", "S3 bucket for the s3 feed")
	cmd.Flags().String("s3-key", "", "S3 object key for the s3 feed")
	cmd.Flags().String("s3-region", "us-east-1", "S3 region for the s3 feed")
	cmd.Flags().Duration("s3-interval", 30*time.Second, "S3 poll interval")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		v.SetEnvPrefix("LIVEBIND")
		v.AutomaticEnv()
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
		}
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		return runServe(v)
	}

	return cmd
}

func runServe(v *viper.Viper) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tick := v.GetDuration("tick")
	feeds := []livesrv.Feed{
		livesrv.NewFeed("ticks", stream.Ticker(tick)),
		livesrv.NewFeed("now", stream.Map(stream.Ticker(tick), func(uint64) string {
			return time.Now().UTC().Format(time.RFC3339)
		})),
	}

	if bucket, key := v.GetString("s3-bucket"), v.GetString("s3-key"); bucket != "" && key != "" {
		// The demo reads publicly accessible objects; wire your own
		// client (and credentials) through livesrv for private buckets.
		client := s3.New(s3.Options{
			Region:      v.GetString("s3-region"),
			Credentials: aws.AnonymousCredentials{},
		})
		src := s3watch.Watch(client, bucket, key, v.GetDuration("s3-interval"))
		feeds = append(feeds, livesrv.NewFeed("s3", stream.Map(src, func(b []byte) string {
			return string(b)
		})))
		logger.Info("s3 feed enabled", "bucket", bucket, "key", key)
	}

	srv := livesrv.NewServer(feeds, livesrv.WithServerLogger(logger))

	addr := v.GetString("addr")
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "feeds", len(feeds))
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	}
}
