package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jengzang/tour-geocompare/internal/api"
	"github.com/jengzang/tour-geocompare/internal/config"
	"github.com/jengzang/tour-geocompare/internal/database"
	"github.com/jengzang/tour-geocompare/internal/geocompare"
	"github.com/jengzang/tour-geocompare/internal/handler"
	"github.com/jengzang/tour-geocompare/internal/repository"
	"github.com/jengzang/tour-geocompare/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化数据库
	if err := database.Init(database.Config{
		Path:    cfg.Database.Path,
		Migrate: cfg.Database.Migrate,
	}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	db := database.GetDB()
	tourRepo := repository.NewTourRepository(db)
	geoPartRepo := repository.NewGeoPartRepository(db, cfg.AppFilter.RepositoryFilter())

	manager := geocompare.NewManager(service.CompareStore{
		TourRepository:    tourRepo,
		GeoPartRepository: geoPartRepo,
	}, cfg.Compare.EngineConfig())
	defer manager.Close()

	router := api.SetupRouter(cfg, api.Handlers{
		Tour:       handler.NewTourHandler(service.NewTourService(tourRepo)),
		GeoCompare: handler.NewGeoCompareHandler(service.NewGeoCompareService(tourRepo, manager, cfg.Compare.Filter)),
	})

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
