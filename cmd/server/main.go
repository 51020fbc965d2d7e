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

	"github.com/cloudwego/hertz/pkg/app/server"

	"tvcontrol/internal/config"
	"tvcontrol/internal/hertzapi"
	"tvcontrol/internal/httpapi"
	"tvcontrol/internal/rooms"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 创建频道管理器，两个监听端口共享同一份房间
	roomManager := rooms.NewManager()

	// Hertz 负责客户端流量
	hub := hertzapi.NewRouter(server.Default(server.WithHostPorts(cfg.Server.Addr)), roomManager)

	// echo 负责管理端口：健康检查、频道查询、/metrics
	admin := &http.Server{
		Addr:              cfg.Server.AdminAddr,
		Handler:           httpapi.NewServer(roomManager).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting hub on %s\n", cfg.Server.Addr)
		hub.Spin()
	}()
	go func() {
		log.Printf("Starting admin server on %s\n", cfg.Server.AdminAddr)
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Admin server failed: %v\n", err)
		}
	}()

	// 优雅关闭
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := hub.Shutdown(ctx); err != nil {
		log.Printf("Hub shutdown failed: %v\n", err)
	}
	if err := admin.Shutdown(ctx); err != nil {
		log.Printf("Admin shutdown failed: %v\n", err)
	}

	log.Println("Server stopped")
}
