package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yinchi/digital-hospitals/internal/analysis/runner"
	"github.com/yinchi/digital-hospitals/internal/api"
	"github.com/yinchi/digital-hospitals/internal/config"
	"github.com/yinchi/digital-hospitals/internal/database"
	"github.com/yinchi/digital-hospitals/internal/repository"
	"github.com/yinchi/digital-hospitals/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化数据库
	dbConfig := database.Config{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.DBDSN,
	}
	if err := database.Init(dbConfig); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	svc := service.NewBimTaskService(repository.NewBimTaskRepository(database.GetDB()), runner.Options{
		GridSize:    cfg.GridSize,
		RunnerSpeed: cfg.RunnerSpeed,
		Workers:     cfg.Workers,
		MaxCells:    cfg.MaxCells,
	})
	if err := svc.Recover(); err != nil {
		log.Fatal("Failed to recover interrupted tasks:", err)
	}

	// 初始化路由
	router, limiter := api.SetupRouter(cfg, svc)
	defer limiter.Stop()

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动服务器
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Printf("Background tasks did not stop in time: %v", err)
	}
}
