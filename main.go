package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"agency-chat-client/internal/chat"
	"agency-chat-client/internal/config"
	"agency-chat-client/internal/handlers"
	"agency-chat-client/internal/observability"
	"agency-chat-client/internal/rabbitmq"
	"agency-chat-client/internal/rest"
	"agency-chat-client/internal/session"
	"agency-chat-client/internal/store"
	"agency-chat-client/internal/telemetry"
	"agency-chat-client/internal/upload"
	"agency-chat-client/internal/ws"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, "agency-chat-client", cfg.Environment)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat_client", "agency-chat-client", cfg.Environment, logger)

	sess, sessErr := session.NewStore(cfg.SessionFile).Load()
	if sessErr == nil && !sess.Valid() {
		sessErr = session.ErrNoSession
	}

	api := rest.NewClient(cfg.BackendBaseURL, func() string { return sess.Token }, logger)
	st := store.New(sess.UserID, cfg.PendingTTL, logger)
	hub := ws.NewClient(cfg.HubURL, sess.UserID, func() string { return sess.Token }, logger)
	svc := chat.NewService(sess, api, hub, st, upload.NewPipeline(api, logger),
		cfg.HistoryPageSize, cfg.UploadLimit, cfg.PendingTTL, logger)

	hub.OnMessage(svc.HandlePush)
	hub.OnAck(svc.HandleAck)
	hub.OnStatusChange(func(up bool) {
		logger.Info("hub status changed", zap.Bool("connected", up))
	})

	// Without a session the chat stays inert: no manager fetch, no hub
	// connection, facade keeps serving.
	setupErr := sessErr
	hubStarted := sessErr == nil
	if setupErr == nil {
		go hub.Run()
		if err := svc.Start(ctx); err != nil {
			logger.Error("chat setup failed", zap.Error(err))
			setupErr = err
		} else {
			go svc.RunSweeper(ctx)
		}
	} else {
		logger.Warn("no usable session, chat disabled", zap.Error(sessErr))
	}

	router := gin.New()
	router.Use(gin.Recovery(), observability.HTTPMetricsMiddleware())

	chatHandler := handlers.NewChatHandler(svc, st, hub, setupErr, logger)
	router.GET("/status", chatHandler.Status)
	router.GET("/rooms", chatHandler.ListRooms)
	router.GET("/rooms/:room_id/messages", chatHandler.GetRoomMessages)
	router.POST("/rooms/:room_id/messages", chatHandler.PostRoomMessage)
	router.POST("/rooms/:room_id/attachments", chatHandler.PostRoomAttachments)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, emitter, sess.UserID, cfg.Debug)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("facade server error", zap.Error(err))
		}
	}()
	logger.Info("facade listening", zap.String("addr", cfg.ListenAddr))

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("facade shutdown", zap.Error(err))
	}
	if hubStarted {
		hub.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
