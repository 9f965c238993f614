// Command server starts the clipriver API HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clipriver/internal/api"
	"clipriver/internal/auth"
	"clipriver/internal/media"
	"clipriver/internal/observability/logging"
	"clipriver/internal/observability/metrics"
	"clipriver/internal/server"
	"clipriver/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	storageDriver := flag.String("storage-driver", "", "datastore driver (memory or mongo)")
	mongoURI := flag.String("mongo-uri", "", "MongoDB connection string")
	mongoDatabase := flag.String("mongo-database", "", "MongoDB database name")
	mongoConnectTimeout := flag.Duration("mongo-connect-timeout", 0, "timeout for the initial MongoDB connection")
	jwtSecret := flag.String("jwt-secret", "", "HMAC secret for signing access tokens")
	jwtTTL := flag.Duration("jwt-ttl", 0, "lifetime of issued access tokens")
	strictReferences := flag.Bool("strict-references", false, "reject reactions and comments that reference missing records")
	mediaEndpoint := flag.String("media-endpoint", "", "object storage endpoint (e.g. 127.0.0.1:9000)")
	mediaRegion := flag.String("media-region", "", "object storage region")
	mediaAccessKey := flag.String("media-access-key", "", "object storage access key")
	mediaSecretKey := flag.String("media-secret-key", "", "object storage secret key")
	mediaBucket := flag.String("media-bucket", "", "object storage bucket name")
	mediaUseSSL := flag.Bool("media-use-ssl", false, "enable TLS for object storage requests")
	mediaPublicEndpoint := flag.String("media-public-endpoint", "", "public endpoint used for asset URLs")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	corsOrigins := flag.String("cors-allowed-origins", "", "comma separated origins allowed to call the API")
	shutdownTimeout := flag.Duration("shutdown-timeout", 0, "bound on graceful shutdown")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPRIVER_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CLIPRIVER_LOG_FORMAT")),
	})
	auditLogger := logging.WithComponent(logger, "audit")
	recorder := metrics.Default()

	serverMode := modeValue(*mode, os.Getenv("CLIPRIVER_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("CLIPRIVER_ADDR"))

	secret := firstNonEmpty(*jwtSecret, os.Getenv("CLIPRIVER_JWT_SECRET"))
	tokenOpts := []auth.Option{}
	if ttl := resolveDuration(*jwtTTL, "CLIPRIVER_JWT_TTL", 0); ttl > 0 {
		tokenOpts = append(tokenOpts, auth.WithTTL(ttl))
	}
	tokens, err := auth.NewTokenManager(secret, tokenOpts...)
	if err != nil {
		logger.Error("failed to configure token manager", "error", err)
		os.Exit(1)
	}

	storeOpts := storage.Options{
		StrictReferences: resolveBool(*strictReferences, "CLIPRIVER_STRICT_REFERENCES"),
	}

	driver, err := resolveStorageDriver(
		*storageDriver,
		os.Getenv("CLIPRIVER_STORAGE_DRIVER"),
		firstNonEmpty(*mongoURI, os.Getenv("CLIPRIVER_MONGO_URI")),
	)
	if err != nil {
		logger.Error("failed to resolve storage driver", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" && driver != "mongo" {
		logger.Error("production mode requires the mongo datastore driver", "driver", driver)
		os.Exit(1)
	}

	var (
		store       storage.Repository
		storeCloser func(context.Context) error
	)
	switch driver {
	case "memory":
		store = storage.New(storeOpts)
	case "mongo":
		uri := firstNonEmpty(*mongoURI, os.Getenv("CLIPRIVER_MONGO_URI"))
		if uri == "" {
			logger.Error("mongo storage selected without URI")
			os.Exit(1)
		}
		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		repo, err := storage.NewMongoRepository(connectCtx, storage.MongoConfig{
			URI:            uri,
			Database:       firstNonEmpty(*mongoDatabase, os.Getenv("CLIPRIVER_MONGO_DATABASE")),
			ConnectTimeout: resolveDuration(*mongoConnectTimeout, "CLIPRIVER_MONGO_CONNECT_TIMEOUT", 0),
			Options:        storeOpts,
		})
		cancel()
		if err != nil {
			logger.Error("failed to open datastore", "error", err)
			os.Exit(1)
		}
		store = repo
		storeCloser = repo.Close
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}

	mediaCfg := media.MinioConfig{
		Endpoint:       firstNonEmpty(*mediaEndpoint, os.Getenv("CLIPRIVER_MEDIA_ENDPOINT")),
		Region:         firstNonEmpty(*mediaRegion, os.Getenv("CLIPRIVER_MEDIA_REGION")),
		AccessKey:      firstNonEmpty(*mediaAccessKey, os.Getenv("CLIPRIVER_MEDIA_ACCESS_KEY")),
		SecretKey:      firstNonEmpty(*mediaSecretKey, os.Getenv("CLIPRIVER_MEDIA_SECRET_KEY")),
		Bucket:         firstNonEmpty(*mediaBucket, os.Getenv("CLIPRIVER_MEDIA_BUCKET")),
		UseSSL:         resolveBool(*mediaUseSSL, "CLIPRIVER_MEDIA_USE_SSL"),
		PublicEndpoint: firstNonEmpty(*mediaPublicEndpoint, os.Getenv("CLIPRIVER_MEDIA_PUBLIC_ENDPOINT")),
	}
	var relay media.Relay = media.Disabled{}
	if mediaCfg.Enabled() {
		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		minioRelay, err := media.NewMinioRelay(connectCtx, mediaCfg)
		cancel()
		if err != nil {
			logger.Error("failed to configure media relay", "error", err)
			os.Exit(1)
		}
		relay = minioRelay
	} else {
		logger.Warn("media relay disabled, uploads will be rejected")
	}

	handler := api.NewHandler(store, relay, tokens, logging.WithComponent(logger, "api"))

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("CLIPRIVER_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("CLIPRIVER_TLS_KEY")),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("CLIPRIVER_CORS_ALLOWED_ORIGINS"))),
		},
		Logger:      logger,
		AuditLogger: auditLogger,
		Metrics:     recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("clipriver API listening", "addr", listenAddr, "mode", serverMode, "driver", driver)
	logger.Info("metrics endpoint available", "path", "/metrics")

	runErr := srv.Run(ctx, resolveDuration(*shutdownTimeout, "CLIPRIVER_SHUTDOWN_TIMEOUT", 10*time.Second), nil)

	if storeCloser != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := storeCloser(closeCtx); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		logger.Error("server error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveStorageDriver(flagValue, envValue, mongoURI string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(mongoURI) != "" {
		return "mongo", nil
	}
	return "", fmt.Errorf("no datastore configured: provide --storage-driver memory or configure MongoDB via CLIPRIVER_MONGO_URI or --mongo-uri")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
