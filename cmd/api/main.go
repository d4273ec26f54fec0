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
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/cache"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/mutation"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/router"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/seed"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/store"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/task"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/database"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	logCfg := utilities.ConfigFromEnv()
	lg, err := utilities.Init(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-task-tracker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// init db
	dbCfg := database.ConfigFromEnv()
	db, err := database.Connect(dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	sugar.Infow("database connected", "driver", dbCfg.Driver)

	st := store.New(db)
	if err := st.EnsureSchema(ctx); err != nil {
		sugar.Fatalf("ensure schema: %v", err)
	}

	cacheCfg := cache.ConfigFromEnv()
	projections, err := cache.New(ctx, cacheCfg)
	if err != nil {
		sugar.Fatalf("cache: %v", err)
	}
	if c, ok := projections.(io.Closer); ok {
		defer c.Close()
	}
	sugar.Infow("projection cache ready", "backend", cacheCfg.Backend)

	ids, err := utilities.IDGeneratorFromEnv()
	if err != nil {
		sugar.Fatalf("id generator: %v", err)
	}

	tokenCfg, err := auth.TokenConfigFromEnv(logCfg.Dev)
	if err != nil {
		sugar.Fatalf("token config: %v", err)
	}
	tokens, err := auth.NewTokenService(tokenCfg)
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}
	hasher := auth.BcryptHasherFromEnv()

	if seed.Enabled() {
		if _, err := seed.Load(ctx, st, hasher, ids, sugar); err != nil {
			sugar.Fatalf("seed demo data: %v", err)
		}
	}

	reader := cache.NewReader(projections, sugar)
	orch := mutation.New(st, projections, ids, sugar)
	userSvc := user.NewService(st, reader, orch, tokens, hasher, ids, sugar)
	taskSvc := task.NewService(st, reader, orch, sugar)

	handler := router.RegisterRoutes(sugar, router.Deps{
		Users:    user.NewHandler(userSvc, sugar),
		Tasks:    task.NewHandler(taskSvc, sugar),
		Comments: comment.NewHandler(orch, sugar),
		Resolver: auth.NewResolver(tokens, userSvc, sugar),
		DB:       db,
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		sugar.Infow("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
