package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/auth"
	"github.com/example/face-liveness/internal/capture"
	"github.com/example/face-liveness/internal/config"
	"github.com/example/face-liveness/internal/handlers"
	"github.com/example/face-liveness/internal/logging"
	"github.com/example/face-liveness/internal/rekognition"
	"github.com/example/face-liveness/internal/usecase"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "face-liveness",
		Short:         "Face liveness session broker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newSessionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session broker HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := rekognition.New(initCtx, rekognition.Options{
		Region:           cfg.AWS.Region,
		AccessKeyID:      cfg.AWS.AccessKeyID,
		SecretAccessKey:  cfg.AWS.SecretAccessKey,
		AuditImagesLimit: cfg.Rekognition.AuditImagesLimit,
		OutputBucket:     cfg.Rekognition.OutputBucket,
		OutputPrefix:     cfg.Rekognition.OutputPrefix,
		KMSKeyID:         cfg.Rekognition.KMSKeyID,
	}, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	uc := usecase.NewLivenessUseCase(client, logger,
		usecase.WithThreshold(cfg.Liveness.ConfidenceThreshold),
		usecase.WithMetrics(usecase.NewMetrics(registry)),
	)

	router := handlers.NewRouter(uc, auth.BearerGuard(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience), handlers.Options{
		Logger:      logger,
		Production:  cfg.IsProduction(),
		CORSOrigins: cfg.CORSOrigins,
		Capture: capture.Settings{
			Region:            cfg.Capture.Region,
			IdentityPoolID:    cfg.Capture.IdentityPoolID,
			FallbackSessionID: cfg.Capture.FallbackSessionID,
		},
		CaptureTokens: auth.NewCaptureTokens(cfg.Auth.JWTSecret, cfg.Capture.TokenTTL),
		Gatherer:      registry,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("session broker listening",
		zap.String("addr", server.Addr),
		zap.String("region", cfg.AWS.Region),
		zap.Float64("confidence_threshold", uc.Threshold()),
	)
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
