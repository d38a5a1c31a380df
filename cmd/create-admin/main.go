package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/StudentGarage/StudentGarage/internal/account"
	"github.com/StudentGarage/StudentGarage/internal/common/config"
	"github.com/StudentGarage/StudentGarage/internal/common/db"
	"github.com/StudentGarage/StudentGarage/internal/common/logger"
	"github.com/joho/godotenv"
)

// create-admin 带外开通管理员账号的运维工具：
// 不走 HTTP 注册口令路径，直接对库操作，幂等（重复执行只补管理员记录）。
var (
	configPath = flag.String("config", "configs/garage-service.json", "配置文件路径")
	email      = flag.String("email", "", "管理员邮箱")
	password   = flag.String("password", "", "初始口令（账号已存在时忽略）")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: create-admin -email <email> [-password <password>] [-config <path>]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "stdout", "")
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

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
	if err := gdb.AutoMigrate(&account.Account{}, &account.AdminGrant{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	svc := account.NewService(account.NewGormRepo(gdb), nil, cfg.Auth.AdminSecret, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, created, err := svc.EnsureAdmin(ctx, *email, *password)
	if err != nil {
		log.Fatalf("failed to ensure admin: %v", err)
	}
	if created {
		log.Infof("admin account created: id=%s email=%s", a.ID, a.Email)
	} else {
		log.Infof("admin grant ensured for existing account: id=%s email=%s", a.ID, a.Email)
	}
}
