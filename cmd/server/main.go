package main

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/yi-nology/filebridge/biz/dal/model"
	"github.com/yi-nology/filebridge/biz/handler"
	"github.com/yi-nology/filebridge/biz/middleware"
	"github.com/yi-nology/filebridge/biz/router"
	"github.com/yi-nology/filebridge/biz/service"
	"github.com/yi-nology/filebridge/pkg/config"
	"github.com/yi-nology/filebridge/pkg/database"
	"github.com/yi-nology/filebridge/pkg/redis"
	"github.com/yi-nology/filebridge/pkg/storage/factory"
	"github.com/yi-nology/filebridge/pkg/transfer"
	"github.com/yi-nology/filebridge/pkg/urlcache"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		hlog.Fatalf("load config: %v", err)
	}

	dbConn, err := database.Open(cfg.Database)
	if err != nil {
		hlog.Fatalf("open database: %v", err)
	}
	if err := dbConn.AutoMigrate(&model.File{}); err != nil {
		hlog.Fatalf("migrate database: %v", err)
	}

	// The backend is selected once at startup; a bad storage configuration
	// must fail here, not on the first request.
	backend, err := factory.New(context.Background(), cfg.Storage)
	if err != nil {
		hlog.Fatalf("init storage backend: %v", err)
	}
	hlog.Infof("storage backend %s ready", backend.Type())

	var urls *urlcache.Cache
	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			hlog.Fatalf("connect redis: %v", err)
		}
		urls = urlcache.New(rdb, time.Duration(cfg.Transfer.URLCacheTTLSeconds)*time.Second)
	} else {
		urls = urlcache.New(nil, time.Duration(cfg.Transfer.URLCacheTTLSeconds)*time.Second)
	}

	var identity service.IdentityChecker
	if cfg.Identity.Endpoint != "" {
		identity = service.NewRemoteIdentityChecker(
			cfg.Identity.Endpoint,
			cfg.Identity.Token,
			time.Duration(cfg.Identity.TimeoutSeconds)*time.Second,
		)
	}

	coordinator := transfer.New(backend, cfg.Transfer.ChunkSize)
	svc := service.NewService(dbConn, backend, coordinator, urls, identity)
	svc.TransferTimeout = time.Duration(cfg.Transfer.TimeoutSeconds) * time.Second
	fileHandler := handler.NewFileHandler(svc)

	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		server.WithMaxRequestBodySize(int(cfg.Server.MaxUploadSize)),
		server.WithStreamBody(true),
	)
	h.Use(middleware.Recovery())
	h.Use(middleware.Logging())
	h.Use(middleware.CORS(&cfg.CORS))
	h.Use(middleware.Identity())

	router.RegisterFileRoutes(h, fileHandler)

	hlog.Infof("filebridge listening on %s", cfg.Server.Address)
	h.Spin()
}
