package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/repository"
	"github.com/sheriapal/sheriapal-api/pkg/config"
	"github.com/sheriapal/sheriapal-api/pkg/database"
)

func main() {
	email := flag.String("email", "", "superadmin email")
	password := flag.String("password", "", "superadmin password (min 8 characters)")
	fullName := flag.String("name", "Super Admin", "display name")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		log.Fatal("usage: create-superadmin -email <email> -password <password> [-name <name>]")
	}
	addr := strings.ToLower(strings.TrimSpace(*email))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	repo := repository.NewUserRepository(db)

	if _, err := repo.FindByEmail(ctx, addr); err == nil {
		log.Fatalf("account %s already exists", addr)
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("failed to check existing account: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        addr,
		PasswordHash: string(hash),
		FullName:     *fullName,
		Role:         models.RoleSuperAdmin,
		IsApproved:   true,
		Active:       true,
	}
	if err := repo.Create(ctx, user); err != nil {
		log.Fatalf("failed to create superadmin: %v", err)
	}

	log.Printf("superadmin %s created (id %s)", user.Email, user.ID)
}
