package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg-server/cache"
	"github.com/chaos-io/rembg-server/config"
	"github.com/chaos-io/rembg-server/handler"
	"github.com/chaos-io/rembg-server/middleware"
	"github.com/chaos-io/rembg-server/pipeline"
	"github.com/chaos-io/rembg-server/probe"
	"github.com/chaos-io/rembg-server/rembg"
	"github.com/chaos-io/rembg-server/util"
)

var Version = "dev"

func main() {
	cfg := config.New()

	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	util.Logger.Info("starting background removal server",
		zap.String("version", Version),
		zap.String("port", cfg.Server.Port))

	// 分割后端句柄进程内只建一次，所有请求共享只读引用
	var remover pipeline.Remover
	if cfg.Rembg.BaseURL != "" {
		remover = rembg.NewLimit(
			rembg.NewBiRefNet(cfg.Rembg.BaseURL),
			cfg.Rembg.MaxConcurrent,
			cfg.Rembg.QueueTimeout,
		)
	} else {
		util.Logger.Warn("no segmentation backend configured, falling back to passthrough")
		remover = rembg.NewPassthrough()
	}

	pipe := pipeline.New(cfg.Upload.Limits(), remover)

	var resultCache *cache.ResultCache
	if cfg.Redis.Enabled {
		resultCache = cache.NewResultCache(&cfg.Redis)
		if err := resultCache.Ping(context.Background()); err != nil {
			util.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
			resultCache = nil
		} else {
			util.Logger.Info("redis connected successfully")
			defer resultCache.Close()
		}
	}

	if cfg.Rembg.BaseURL != "" && cfg.Rembg.ProbeSchedule != "" {
		backendProbe := probe.NewBackendProbe(cfg.Rembg.BaseURL, cfg.Rembg.ProbeSchedule)
		if err := backendProbe.Start(); err != nil {
			util.Logger.Warn("failed to start backend probe", zap.Error(err))
		} else {
			defer backendProbe.Stop()
		}
	}

	removeHandler := handler.NewRemoveHandler(cfg, pipe, resultCache)
	infoHandler := handler.NewInfoHandler(cfg, Version)

	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.WithRequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	r.GET("/health", infoHandler.Health)
	r.GET("/api-info", infoHandler.APIInfo)
	r.POST("/remove-background", removeHandler.Remove)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	util.Logger.Info("server starting", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Logger.Fatal("failed to start server", zap.Error(err))
	}
}
