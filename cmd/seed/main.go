package main

import (
	"context"
	"errors"
	"os"
	"time"

	"techwire-be/internal/admin"
	"techwire-be/internal/config"
	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/notify"

	"go.uber.org/zap"
)

// seed creates the first super admin from USER_NAME, EMAIL and NAME.
func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()
	log := logger.L()

	in := admin.CreateInput{
		Username: os.Getenv("USER_NAME"),
		Email:    os.Getenv("EMAIL"),
		Name:     os.Getenv("NAME"),
	}

	database := db.InitDB(cfg)
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := admin.NewService(admin.NewRepository(database), notify.NewDispatcher(time.Second, 1, notify.Nop{}))
	created, err := seed(ctx, svc, in)
	if err != nil {
		log.Fatal("seeding super admin failed", zap.Error(err))
	}
	if !created {
		log.Info("super admin already exists, nothing to do")
		return
	}
	log.Info("super admin created", zap.String("email", in.Email), zap.String("username", in.Username))
}

var errMissingEnv = errors.New("USER_NAME, EMAIL and NAME must all be set")

type seeder interface {
	SeedSuperAdmin(ctx context.Context, in admin.CreateInput) (bool, error)
}

func seed(ctx context.Context, s seeder, in admin.CreateInput) (bool, error) {
	if in.Email == "" || in.Username == "" || in.Name == "" {
		return false, errMissingEnv
	}
	return s.SeedSuperAdmin(ctx, in)
}
