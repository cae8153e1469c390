package credential

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duck-intake/internal/domain"
)

// Store persists credential grants.
type Store interface {
	ListGrants(ctx context.Context) ([]domain.CredentialGrant, error)
	CreateGrant(ctx context.Context, g domain.CredentialGrant) error
	DeleteGrant(ctx context.Context, tokenHash, collection string) error
}

// Service is the provisioning write path. Every change is persisted first
// and then applied to the in-memory registry.
type Service struct {
	store    Store
	registry *Registry
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(store Store, registry *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, registry: registry, logger: logger}
}

// Load replaces the registry contents with the persisted grants.
func (s *Service) Load(ctx context.Context) error {
	grants, err := s.store.ListGrants(ctx)
	if err != nil {
		return fmt.Errorf("list grants: %w", err)
	}
	s.registry.Replace(grants)
	s.logger.Info("credential registry loaded", "grants", len(grants), "tokens", s.registry.Len())
	return nil
}

// Grant authorizes req.Token to write to req.Collection.
func (s *Service) Grant(ctx context.Context, req domain.GrantRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	g := domain.CredentialGrant{
		TokenHash:  domain.HashToken(req.Token),
		KeyPrefix:  domain.KeyPrefix(req.Token),
		Collection: req.Collection,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateGrant(ctx, g); err != nil {
		return fmt.Errorf("persist grant: %w", err)
	}
	s.registry.grantHash(g.TokenHash, g.Collection)
	s.logger.Info("credential granted", "key_prefix", g.KeyPrefix, "collection", g.Collection)
	return nil
}

// Revoke removes req.Collection from the scope of req.Token.
func (s *Service) Revoke(ctx context.Context, req domain.GrantRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.store.DeleteGrant(ctx, domain.HashToken(req.Token), req.Collection); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	s.registry.Revoke(req.Token, req.Collection)
	s.logger.Info("credential revoked", "key_prefix", domain.KeyPrefix(req.Token), "collection", req.Collection)
	return nil
}

// List returns every persisted grant.
func (s *Service) List(ctx context.Context) ([]domain.CredentialGrant, error) {
	return s.store.ListGrants(ctx)
}
