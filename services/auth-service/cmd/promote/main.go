// Command promote creates a verified Super Admin account, or promotes an existing
// account and resets its password.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/term"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/auth"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/logger"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/ratelimit"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

// promotion never sends email.
type discardDispatcher struct{}

func (discardDispatcher) Dispatch(context.Context, model.Notification) {}

func main() {
	_ = godotenv.Load()

	email := flag.String("email", "", "account email (required)")
	fullName := flag.String("name", "", "full name, required when the account does not exist")
	mobile := flag.String("mobile", "", "mobile number, required when the account does not exist")
	village := flag.String("village", "", "village name")
	flag.Parse()

	log := logger.New(os.Getenv("LOG_LEVEL"), true)

	password, err := readPassword()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read password")
	}

	mongoCfg, err := env.ParseAsWithOptions[config.MongoConfig](env.Options{Prefix: "MONGO_"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(mongoCfg.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(mongoCfg.Database)
	accountRepo := repository.NewAccountMongoRepository(ctx, log, db)

	cfg := &config.AuthServiceConfig{}
	sessions := usecase.NewSessionUsecase(accountRepo, auth.NewJWTAuthenticator("", ""), cfg, log)
	verifications := usecase.NewVerificationUsecase(accountRepo, discardDispatcher{}, ratelimit.Noop{}, cfg, log)
	authUsecase := usecase.NewAuthUsecase(
		accountRepo, sessions, verifications, security.NewArgon2Hasher(), discardDispatcher{}, cfg, log,
	)

	account, err := authUsecase.PromoteSuperAdmin(ctx, usecase.PromoteParams{
		FullName:     *fullName,
		Email:        *email,
		MobileNumber: *mobile,
		VillageName:  *village,
		Password:     password,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to promote super admin")
	}

	log.Info().Str("account_id", account.ID.Hex()).Str("email", account.Email).Msg("super admin ready")
}

// readPassword takes SUPER_ADMIN_PASSWORD when set and otherwise prompts on the terminal.
func readPassword() (string, error) {
	if password := os.Getenv("SUPER_ADMIN_PASSWORD"); password != "" {
		return password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("SUPER_ADMIN_PASSWORD is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(password)), nil
}
