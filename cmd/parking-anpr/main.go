package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsrekognition "github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-anpr/internal/config"
	"parking-anpr/internal/db"
	"parking-anpr/internal/fare"
	httpapi "parking-anpr/internal/http"
	"parking-anpr/internal/logger"
	"parking-anpr/internal/notify"
	"parking-anpr/internal/recognition"
	"parking-anpr/internal/recognition/rekognition"
	"parking-anpr/internal/recognition/tesseract"
	"parking-anpr/internal/recognition/yolo"
	"parking-anpr/internal/repository"
	"parking-anpr/internal/repository/memory"
	"parking-anpr/internal/service"
	"parking-anpr/internal/snapshot"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsCfg aws.Config
	if cfg.AWS.Region != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
	}

	sessionStore, plateReads, closeStore, err := openStores(cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	detector, closeDetector, err := newDetector(cfg.Recognition, log)
	if err != nil {
		return err
	}
	defer closeDetector()

	var reader recognition.TextReader
	switch cfg.Recognition.OCR {
	case "rekognition":
		reader = rekognition.New(awsrekognition.NewFromConfig(awsCfg))
	default:
		reader = tesseract.New(tesseract.Config{Language: cfg.Recognition.OCRLanguage})
	}
	recognizer := recognition.NewRecognizer(detector, reader, cfg.Recognition.Options(), log)

	policy, err := fare.NewPolicy(cfg.Fare.FareConfig())
	if err != nil {
		return fmt.Errorf("fare policy: %w", err)
	}
	log.Info().Str("policy", policy.Name()).Msg("fare policy selected")

	hub := notify.NewHub(log, cfg.Server.AllowedOrigins)
	go hub.Run(ctx)
	publishers := notify.Multi{hub}
	if cfg.AWS.EventQueueURL != "" {
		publishers = append(publishers, notify.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.EventQueueURL))
	}

	opts := []service.Option{
		service.WithNotifier(publishers),
		service.WithPlateReads(plateReads),
		service.WithStorageRetry(cfg.Database.RetryOnce),
	}
	if cfg.AWS.SnapshotBucket != "" {
		opts = append(opts, service.WithSnapshots(snapshot.NewStore(s3.NewFromConfig(awsCfg), cfg.AWS.SnapshotBucket, cfg.AWS.Region)))
	}

	sessions := service.NewSessionService(sessionStore, fare.NewCalculator(policy), log.With().Str("component", "sessions").Logger())
	parkingService := service.NewParkingService(recognizer, sessions, sessionStore, log.With().Str("component", "parking").Logger(), opts...)

	handler := httpapi.NewHandler(parkingService, hub, cfg.Server, log.With().Str("component", "http").Logger())
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStores(cfg config.DatabaseConfig, log zerolog.Logger) (repository.SessionStore, repository.PlateReadStore, func(), error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("using in-memory store, sessions are lost on restart")
		store := memory.New()
		return store, store, func() {}, nil
	}

	gdb, err := db.Open(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
	return repository.NewSessionRepository(gdb), repository.NewPlateReadRepository(gdb), closeFn, nil
}

func newDetector(cfg config.RecognitionConfig, log zerolog.Logger) (recognition.Detector, func(), error) {
	if cfg.Detector == "none" {
		log.Warn().Msg("no plate detector configured, uploads are read as pre-cropped plates")
		return nil, func() {}, nil
	}

	d, err := yolo.New(yolo.Config{
		ModelPath:      cfg.ModelPath,
		InputSize:      cfg.InputSize,
		ScoreThreshold: float32(cfg.MinConfidence),
		NMSThreshold:   float32(cfg.NMSThreshold),
		ClassNames:     cfg.ClassNames,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("load detector: %w", err)
	}
	return d, func() { closeQuietly(d, log) }, nil
}

func closeQuietly(c io.Closer, log zerolog.Logger) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("close failed")
	}
}
