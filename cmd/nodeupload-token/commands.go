package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/nodeupload/nodeupload-gw/credentials"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

type options struct {
	driver string
	dsn    string
	cost   int
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := new(options)

	root := &cobra.Command{
		Use:           "nodeupload-token",
		Short:         "Manage NodeUpload gateway tokens",
		Long:          `Creates, lists and toggles the tokens accepted by the upload gateway.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.driver, "driver", credentials.DriverSQLite, "credential store driver: sqlite3 or pgx")
	root.PersistentFlags().StringVar(&opts.dsn, "db", "./db/database.db", "credential store DSN")
	root.PersistentFlags().IntVar(&opts.cost, "cost", bcrypt.DefaultCost, "bcrypt cost of stored secrets")

	root.AddCommand(
		migrateCmd(opts),
		createCmd(opts),
		setEnabledCmd(opts, "enable", true),
		setEnabledCmd(opts, "disable", false),
		listCmd(opts),
	)

	return root
}

// withStore opens the credential store for the duration of fn.
func withStore(cmd *cobra.Command, opts *options, fn func(ctx context.Context, s *credentials.SQLStore) error) error {
	store, err := credentials.Open(opts.driver, opts.dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(cmd.Context(), store)
}

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the tokens table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *credentials.SQLStore) error {
				if err := s.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "credential store is up to date")
				return nil
			})
		},
	}
}

func createCmd(opts *options) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a token and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				var err error
				if email, err = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Email: "); err != nil {
					return err
				}
			}
			if email == "" {
				return errors.New("email is required")
			}

			return withStore(cmd, opts, func(ctx context.Context, s *credentials.SQLStore) error {
				token, err := createToken(ctx, s, email, opts.cost)
				if errors.Is(err, credentials.ErrAlreadyExists) {
					return fmt.Errorf("a token for %q already exists", email)
				} else if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Token for %s: %s\n", email, token)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "owner email, prompted when empty")

	return cmd
}

func setEnabledCmd(opts *options, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *credentials.SQLStore) error {
				if err := s.SetEnabled(ctx, args[0], enabled); errors.Is(err, credentials.ErrNotFound) {
					return fmt.Errorf("token %q not found", args[0])
				} else if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "token %s %sd\n", args[0], use)
				return nil
			})
		},
	}
}

func listCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *credentials.SQLStore) error {
				list, err := s.List(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEMAIL\tENABLED")
				for _, t := range list {
					fmt.Fprintf(w, "%s\t%s\t%t\n", t.ID, t.Email, t.Enabled)
				}
				return w.Flush()
			})
		},
	}
}

// createToken stores a fresh token for email and returns it in the
// "id.secret" form clients present.
func createToken(ctx context.Context, s *credentials.SQLStore, email string, cost int) (string, error) {
	id, secret := newPart(), newPart()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("could not hash secret: %w", err)
	}

	if err = s.Create(ctx, &credentials.Token{
		ID:         id,
		Email:      email,
		SecretHash: string(hash),
		Enabled:    true,
	}); err != nil {
		return "", err
	}

	return id + "." + secret, nil
}

// newPart encodes a random UUID with the URL-safe alphabet, it never
// contains the token separator.
func newPart() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:])
}

func prompt(in io.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
