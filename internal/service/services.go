package service

import (
	"fmt"

	"github.com/dom/autosalon/internal/auth"
	"github.com/dom/autosalon/internal/config"
	"github.com/dom/autosalon/internal/email"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/repository"
	"github.com/dom/autosalon/internal/verification"
)

type Services struct {
	Auth     *AuthService
	User     *UserService
	Favorite *FavoriteService
	Tokens   *auth.TokenIssuer
}

// NewServices wires the services. It fails when the token settings are
// incomplete so a misconfigured server never starts.
func NewServices(repos *repository.Repositories, cfg *config.Config, mailer email.Sender, activity ActivitySink, logger logging.Logger) (*Services, error) {
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		SigningKey: []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create token issuer: %w", err)
	}

	if logger == nil {
		logger = logging.Discard()
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	flow := verification.NewFlow(repos.User, cfg.VerificationTokenTTL)

	return &Services{
		Auth:     NewAuthService(repos, tokens, hasher, flow, mailer, activity, logger),
		User:     NewUserService(repos, activity, logger),
		Favorite: NewFavoriteService(repos.Favorite),
		Tokens:   tokens,
	}, nil
}
