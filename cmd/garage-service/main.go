package main

import (
	"flag"
	"fmt"

	"github.com/StudentGarage/StudentGarage/internal/account"
	"github.com/StudentGarage/StudentGarage/internal/booking"
	"github.com/StudentGarage/StudentGarage/internal/common/config"
	"github.com/StudentGarage/StudentGarage/internal/common/db"
	"github.com/StudentGarage/StudentGarage/internal/common/logger"
	"github.com/StudentGarage/StudentGarage/internal/common/server"
	"github.com/StudentGarage/StudentGarage/internal/common/tracing"
	"github.com/StudentGarage/StudentGarage/internal/mailer"
	"github.com/StudentGarage/StudentGarage/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

var (
	configPath  = flag.String("config", "configs/garage-service.json", "配置文件路径")
	consulKVKey = flag.String("consul-kv", "", "从 Consul KV 读取配置的 key（设置后忽略 -config）")
	consulAddr  = flag.String("consul-addr", "localhost", "Consul 地址（配合 -consul-kv 使用）")
	consulPort  = flag.Int("consul-port", 8500, "Consul 端口（配合 -consul-kv 使用）")
)

func main() {
	flag.Parse()

	// .env 仅开发环境使用；文件不存在时忽略
	_ = godotenv.Load()

	// 加载配置：默认读本地 JSON，指定 -consul-kv 时改走配置中心
	var cfg *config.Config
	var err error
	if *consulKVKey != "" {
		cfg, err = config.LoadConfigFromConsulKV(*consulAddr, *consulPort, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gdb, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := gdb.AutoMigrate(&account.Account{}, &account.AdminGrant{}, &booking.Booking{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// 初始化 Redis（吊销表 + 快照缓存）
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 组装各领域服务
	mail := mailer.NewSMTPMailer(cfg.Mail, log)
	accounts := account.NewService(account.NewGormRepo(gdb), mail, cfg.Auth.AdminSecret, log)
	gate := session.NewGate(accounts, session.NewRedisRegistry(rdb), cfg.Auth, log)
	bookings := booking.NewService(
		booking.NewGormRepo(gdb),
		booking.NewHub(),
		booking.NewRedisSnapshotCache(rdb),
		log,
	)

	sessionHTTP := session.NewHTTPServer(gate, log)
	bookingHTTP := booking.NewHTTPServer(bookings, log)

	if err := server.RunHTTPServer(cfg, log, func(e *gin.Engine) error {
		api := e.Group("/api")

		authed := api.Group("")
		authed.Use(server.JWTAuth(cfg.Auth, gate.RevocationChecker(), log))

		admin := authed.Group("")
		admin.Use(server.RequireRoles("admin"))

		sessionHTTP.RegisterRoutes(api, authed)
		bookingHTTP.RegisterRoutes(authed, admin)
		return nil
	}); err != nil {
		log.Fatalf("garage-service exited with error: %v", err)
	}
}
