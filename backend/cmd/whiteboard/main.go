package main

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"whiteboard/backend/config"
	"whiteboard/backend/internal/board"
	"whiteboard/backend/internal/cache"
	"whiteboard/backend/internal/httpapi/handlers"
	wlog "whiteboard/backend/internal/log"
	"whiteboard/backend/internal/metrics"
	"whiteboard/backend/internal/store"
	"whiteboard/backend/internal/ws"
)

func initConfig() (*config.Config, error) {
	var cfg config.Config
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	// 兼容从项目根目录或 backend 目录启动
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// initProducer Kafka 只承载旁路事件流，连不上降级为不发，不影响服务启动。
func initProducer(brokers []string) sarama.SyncProducer {
	if len(brokers) == 0 {
		return nil
	}
	kafkaCfg := sarama.NewConfig()
	// SyncProducer 必须开启 Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(brokers, kafkaCfg)
	if err != nil {
		log.Warn().Err(err).Msg("kafka unavailable, room events disabled")
		return nil
	}
	return producer
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("init config failed")
	}
	wlog.Init(cfg.Running.Env)

	db, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql connect failed")
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("mysql migrate failed")
	}
	strokes := store.NewStrokeStore(db)

	client := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
	boards := cache.NewDrawingCache(client, strokes)
	presence := cache.NewPresenceTracker(client)
	states := cache.NewRoomStateCache(client)
	cursors := cache.NewCursorBroadcaster(client)
	prefetch := cache.NewPrefetcher(client, boards)

	producer := initProducer(cfg.Kafka.Brokers)
	if producer != nil {
		defer producer.Close()
	}
	svc := board.NewService(strokes, boards, producer, cfg.Kafka.Topic)

	hub := ws.NewHub()
	deps := ws.Deps{
		Board:    svc,
		Presence: presence,
		States:   states,
		Cursors:  cursors,
		Prefetch: prefetch,
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", handlers.Health(client))
	r.GET("/rooms/:id/drawings", handlers.GetRoomDrawings(svc))
	r.GET("/rooms/:id/state", handlers.GetRoomState(states, presence, cursors))
	r.GET("/ws", ws.Serve(hub, deps))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	if err := r.Run(fmt.Sprintf(":%d", cfg.Running.Port)); err != nil {
		log.Fatal().Err(err).Msg("server run failed")
	}
}
