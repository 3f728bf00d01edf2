package main

import (
	"context"
	"log"

	docker "github.com/docker/docker/client"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/capsulelabs/gradeq/internal/api"
	"github.com/capsulelabs/gradeq/internal/config"
	"github.com/capsulelabs/gradeq/internal/grader"
	"github.com/capsulelabs/gradeq/internal/queue"
	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobStore := buildStore(cfg)
	registry := buildRegistry(ctx, cfg)

	q := queue.New(jobStore, queue.Options{
		DefaultTimeout: cfg.DefaultTimeout,
		MaxTimeout:     cfg.MaxTimeout,
	})
	engine := grader.NewEngine(q, grader.NewPoller(0, 0), cfg.GradeFanOut)
	workers := queue.NewWorkers(jobStore, registry, cfg.Workers)

	router := gin.Default()
	api.RegisterRoutes(router, q, engine, jobStore, registry)

	switch cfg.Mode {
	case "worker":
		log.Println("starting in worker-only mode")
		workers.Start(ctx) // blocks until ctx cancelled
	case "api":
		// API-only: no embedded worker goroutines; scale workers separately.
		log.Println("starting in api-only mode")
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	default:
		// Default: run both API server and workers in the same process.
		go workers.Start(ctx)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

// buildStore picks redis when configured, otherwise the in-memory store.
// Single-process deployments work with no external dependencies at all.
func buildStore(cfg config.Config) store.Store {
	if cfg.RedisAddr == "" {
		log.Println("using in-memory job store")
		return store.NewMemoryStore(cfg.Retention)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Printf("using redis job store at %s", cfg.RedisAddr)
	return store.NewRedisStore(client, cfg.Retention)
}

// buildRegistry assembles every backend the deployment can offer. Missing
// pieces (no docker socket, no edge URL) just shrink the set; dispatch
// fallback and health flags handle the rest.
func buildRegistry(ctx context.Context, cfg config.Config) *runtime.Registry {
	backends := []runtime.Backend{runtime.NewSQLiteBackend()}

	if cfg.EdgeURL != "" {
		backends = append(backends, runtime.NewEdgeBackend(cfg.EdgeURL))
	}

	dockerClient, err := docker.NewClientWithOpts(docker.FromEnv, docker.WithAPIVersionNegotiation())
	if err != nil {
		log.Printf("container backend disabled: %v", err)
	} else {
		backends = append(backends, runtime.NewContainerBackend(dockerClient))
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("postgres backend disabled: %v", err)
		} else {
			backends = append(backends, runtime.NewPostgresBackend(pool))
		}
	}

	return runtime.NewRegistry(backends...)
}
