package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Papun1111/pagesmith/internal/api"
	"github.com/Papun1111/pagesmith/internal/config"
	"github.com/Papun1111/pagesmith/internal/database"
	"github.com/Papun1111/pagesmith/internal/ratelimit"
	"github.com/Papun1111/pagesmith/internal/server"
	"github.com/Papun1111/pagesmith/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	mongoURI       string
	mongoDatabase  string
	redisAddr      string
	redisPassword  string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "mongodb connection URI")
	flag.StringVar(&mongoDatabase, "mongo-db", "pagesmith", "mongodb database name")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address")
	flag.StringVar(&redisPassword, "redis-password", "", "redis password")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded token verification key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[pagesmith] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, mongoURI, mongoDatabase, redisAddr, redisPassword, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelConnect()

	db, err := database.NewMongoPagesmithRepository(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("mongo open:", err)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			logger.Println("mongo close:", err)
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(connectCtx).Err(); err != nil {
		// the rate limiter fails open, so a dead redis is not fatal
		logger.Println("redis ping:", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Println("redis close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	collabServer, err := server.NewCollabServer(logger, db, statsUpdater)
	if err != nil {
		logger.Fatal("new collab server:", err)
	}

	resolver := ratelimit.NewPlanResolver(rdb, db, logger)
	limiter := ratelimit.NewLimiter(rdb, logger)

	srv := api.NewPagesmithApp(mux, logger, collabServer, db, resolver, limiter, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go collabServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down collab server...")
	if err := collabServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("collab server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
