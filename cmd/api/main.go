package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"judge-backend/cmd"
	"judge-backend/internal/api"
	"judge-backend/internal/compute"
	"judge-backend/internal/database"
	"judge-backend/internal/inft"
	"judge-backend/internal/scoring"
	"judge-backend/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	ChainRPCURL       string        `env:"CHAIN_RPC_URL,notEmpty,required"`
	IndexerRPCURL     string        `env:"INDEXER_RPC_URL,notEmpty,required"`
	RegistryContract  string        `env:"REGISTRY_CONTRACT_ADDRESS,notEmpty,required"`
	MetadataSymKey    string        `env:"METADATA_SYM_KEY_BASE64,notEmpty,required"`
	ComputeGatewayURL string        `env:"COMPUTE_GATEWAY_URL,notEmpty,required"`
	DatabaseURL       string        `env:"DATABASE_URL" envDefault:"file:judge.db"`
	APIPort           string        `env:"API_PORT" envDefault:"3001"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`
}

func main() {
	log.Println("Starting judge API server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	pipeline := &scoring.Pipeline{
		Registry:    inft.NewClient(cfg.ChainRPCURL, cfg.RegistryContract),
		Fetcher:     storage.NewHTTPFetcher(),
		MetadataKey: cfg.MetadataSymKey,
		Broker: compute.LazyBroker(func() (compute.Broker, error) {
			return compute.NewGatewayClient(cfg.ComputeGatewayURL), nil
		}),
		Uploader: storage.NewIndexerClient(cfg.IndexerRPCURL),
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Scoring waits on a marketplace inference round trip, so the request
	// timeout is generous.
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	api.NewJudgeService(db, pipeline).AddRoutes(r)
	api.NewSubmissionService(db).AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
