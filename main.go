package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"PChat/data/database/mongoutil"
	"PChat/global"
	"PChat/logger"
	mid "PChat/middleware/security"
	chatsvc "PChat/module/chat/service"
	"PChat/module/chat/store"
	"PChat/service/chat"
	online "PChat/service/storage"
	"PChat/tools/ids"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := flag.String("config", "", "yaml config path (optional, env overrides win)")
	flag.Parse()

	if err := global.Load(*cfgPath); err != nil {
		logger.Errorf("load config: %v", err)
		return
	}
	ids.SetNodeID(global.Global.Server.NodeID)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	mongoCli, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{
		Uri:         global.Global.Mongo.URI,
		Database:    global.Global.Mongo.Database,
		MaxPoolSize: global.Global.Mongo.MaxPoolSize,
		MaxRetry:    global.Global.Mongo.MaxRetry,
	})
	cancel()
	if err != nil {
		logger.Errorf("connect mongo: %v", err)
		return
	}
	db := mongoCli.GetDB()

	msgStore := store.NewMessageStore(db)
	chanStore := store.NewChannelStore(db)
	if err := msgStore.EnsureIndexes(context.Background()); err != nil {
		logger.Warnf("ensure indexes: %v", err)
	}

	// presence 是纯观测面，redis 不可用时网关降级运行
	presenceOn := true
	if err := online.InitRedis(online.Config{
		Addr:     global.Global.Redis.Addr,
		Password: global.Global.Redis.Password,
		DB:       global.Global.Redis.DB,
	}); err != nil {
		logger.Warnf("redis unavailable, presence disabled: %v", err)
		presenceOn = false
	}

	reg := chat.NewRegistry()
	router := chat.NewRouter(reg, msgStore, chanStore)

	jwtOpts := security.DefaultOptions(global.JWTSecret())
	jwtOpts.TTL = global.Global.JWTTTL()

	wsServer := chat.NewWsServer(reg, router, &chat.JWTAuthenticator{Opts: jwtOpts}, presenceOn)
	history := chatsvc.NewHistoryService(msgStore, chanStore)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/ws", wsServer.HandleWS)

	api := engine.Group("/api", mid.Middleware(mid.DefaultOptions(jwtOpts)))
	history.RegisterRoutes(api)

	srv := &http.Server{Addr: global.Global.Server.Addr, Handler: engine}

	go func() {
		logger.Infof("gateway listening on %s", global.Global.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("serve: %v", err)
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	logger.Infof("shutting down ...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
	reg.Close()
	router.Close()
	_ = mongoCli.Close(shutCtx)
	logger.Infof("bye")
}
