package credential

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"duck-intake/internal/domain"
)

// SeedFile is the YAML provisioning file format:
//
//	credentials:
//	  - token: default
//	    collections: [dockerAgentEvents]
type SeedFile struct {
	Credentials []SeedCredential `yaml:"credentials"`
}

// SeedCredential is one token and its collections.
type SeedCredential struct {
	Token       string   `yaml:"token"`
	Collections []string `yaml:"collections"`
}

// ParseSeedFile decodes and validates seed file contents.
func ParseSeedFile(data []byte) (*SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, c := range f.Credentials {
		if c.Token == "" {
			return nil, domain.ErrValidation("credentials[%d]: token is required", i)
		}
		if len(c.Collections) == 0 {
			return nil, domain.ErrValidation("credentials[%d]: at least one collection is required", i)
		}
		for _, coll := range c.Collections {
			if err := domain.ValidateCollectionName(coll); err != nil {
				return nil, domain.ErrValidation("credentials[%d]: %s", i, err.Error())
			}
		}
	}
	return &f, nil
}

// Seed grants every credential listed in the YAML file at path. Grants that
// already exist are left alone.
func (s *Service) Seed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	f, err := ParseSeedFile(data)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, c := range f.Credentials {
		for _, coll := range c.Collections {
			if err := s.Grant(ctx, domain.GrantRequest{Token: c.Token, Collection: coll}); err != nil {
				return n, fmt.Errorf("seed %s: %w", domain.KeyPrefix(c.Token), err)
			}
			n++
		}
	}
	return n, nil
}
