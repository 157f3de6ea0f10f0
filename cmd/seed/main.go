// Command seed creates staff accounts.  Buyers never have accounts, so
// this is the only way users enter the system:
//
//	go run ./cmd/seed -username door1 -password s3cret -role SCANNER
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

var roles = map[string]bool{model.RoleAdmin: true, model.RoleSeller: true, model.RoleScanner: true}

func main() {
	username := flag.String("username", "", "staff login name")
	password := flag.String("password", "", "staff password (min 8 chars)")
	role := flag.String("role", model.RoleScanner, "ADMIN, SELLER or SCANNER")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	r := strings.ToUpper(strings.TrimSpace(*role))
	switch {
	case strings.TrimSpace(*username) == "":
		logger.Fatal("-username is required")
	case len(*password) < 8:
		logger.Fatal("-password must be at least 8 characters")
	case !roles[r]:
		logger.WithField("role", *role).Fatal("unknown role")
	}

	_ = godotenv.Load()
	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := repository.NewUserRepo(db).Create(ctx, *username, *password, r, cfg.BcryptCost)
	if errors.Is(err, repository.ErrUsernameExists) {
		logger.WithField("username", *username).Error("username already exists")
		os.Exit(1)
	}
	if err != nil {
		logger.WithError(err).Fatal("create user failed")
	}
	logger.WithFields(logrus.Fields{"id": id, "username": *username, "role": r}).Info("staff user created")
}
