package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"duck-intake/internal/credential"
	internaldb "duck-intake/internal/db"
	"duck-intake/internal/db/repository"
	"duck-intake/internal/domain"
)

// openService opens the credential store at path, migrates it and returns a
// Service over it. The returned func closes the store.
func openService(ctx context.Context, path string) (*credential.Service, func(), error) {
	writeDB, readDB, err := internaldb.OpenSQLitePair(path, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}
	closeFn := func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	}
	if err := internaldb.RunMigrations(writeDB); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate credential store: %w", err)
	}

	svc := credential.NewService(
		repository.NewCredentialRepo(writeDB, readDB),
		credential.NewRegistry(),
		slog.New(slog.DiscardHandler),
	)
	if err := svc.Load(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}

func generateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func newGrantCmd(store func() string) *cobra.Command {
	var (
		token    string
		generate bool
	)
	cmd := &cobra.Command{
		Use:   "grant COLLECTION...",
		Short: "Grant a token write access to collections",
		Long: "Grant a token write access to one or more collections.\n" +
			"Pass the token with --token, or use --generate to create one. A generated token is printed once and never stored in clear.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if generate == (token != "") {
				return errors.New("exactly one of --token or --generate is required")
			}
			for _, coll := range args {
				if err := domain.ValidateCollectionName(coll); err != nil {
					return fmt.Errorf("grant %s: %w", coll, err)
				}
			}
			if generate {
				var err error
				if token, err = generateToken(); err != nil {
					return err
				}
			}

			svc, closeFn, err := openService(cmd.Context(), store())
			if err != nil {
				return err
			}
			defer closeFn()

			for _, coll := range args {
				if err := svc.Grant(cmd.Context(), domain.GrantRequest{Token: token, Collection: coll}); err != nil {
					return fmt.Errorf("grant %s: %w", coll, err)
				}
			}

			out := cmd.OutOrStdout()
			result := map[string]interface{}{
				"key_prefix":  domain.KeyPrefix(token),
				"collections": args,
			}
			if generate {
				result["token"] = token
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, result)
			}
			if generate {
				_, _ = fmt.Fprintf(out, "token: %s\n", token)
			}
			_, _ = fmt.Fprintf(out, "granted %s to %d collection(s)\n", domain.KeyPrefix(token), len(args))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token to grant")
	cmd.Flags().BoolVar(&generate, "generate", false, "Generate a new random token")
	return cmd
}

func newRevokeCmd(store func() string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "revoke COLLECTION...",
		Short: "Revoke a token's access to collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			svc, closeFn, err := openService(cmd.Context(), store())
			if err != nil {
				return err
			}
			defer closeFn()

			for _, coll := range args {
				if err := svc.Revoke(cmd.Context(), domain.GrantRequest{Token: token, Collection: coll}); err != nil {
					return fmt.Errorf("revoke %s: %w", coll, err)
				}
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"key_prefix":  domain.KeyPrefix(token),
					"collections": args,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "revoked %s from %d collection(s)\n", domain.KeyPrefix(token), len(args))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token to revoke")
	return cmd
}

type grantRow struct {
	KeyPrefix  string    `json:"key_prefix"`
	Collection string    `json:"collection"`
	CreatedAt  time.Time `json:"created_at"`
}

func newListCmd(store func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List granted collections per key prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := openService(cmd.Context(), store())
			if err != nil {
				return err
			}
			defer closeFn()

			grants, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]grantRow, 0, len(grants))
			for _, g := range grants {
				rows = append(rows, grantRow{KeyPrefix: g.KeyPrefix, Collection: g.Collection, CreatedAt: g.CreatedAt})
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "KEY PREFIX\tCOLLECTION\tCREATED AT")
			for _, r := range rows {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.KeyPrefix, r.Collection, r.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newSeedCmd(store func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Apply a YAML credentials file to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context(), store())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.Seed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]int{"grants": n})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %d grant(s)\n", n)
			return nil
		},
	}
}
