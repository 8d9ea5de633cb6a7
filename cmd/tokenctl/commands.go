package main

import (
	"bufio"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tokenapi/tokenapi/internal/repository"
	"github.com/tokenapi/tokenapi/internal/service"
	"github.com/tokenapi/tokenapi/internal/token"
)

func newMigrateCmd(get func() *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := get().migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", version)
			return nil
		},
	}
}

func newCreateSuperuserCmd(get func() *deps) *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a staff user and issue their token",
		Long: `Create a staff user. Missing values are prompted for; the password is
read without echo on a terminal, or as one line from piped stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var err error
			if username == "" {
				if username, err = readLine(reader, out, "Username: "); err != nil {
					return fmt.Errorf("read username: %w", err)
				}
			}
			password, err := promptPassword(reader, out)
			if err != nil {
				return err
			}

			user, tok, err := get().users.CreateUser(cmd.Context(), service.CreateUserInput{
				Username: &username,
				Password: &password,
				Email:    &email,
				IsStaff:  true,
			})
			var verr service.ValidationError
			if errors.As(err, &verr) {
				return fmt.Errorf("invalid input: %s", verr.Error())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Superuser %q created (id %d).\n", user.Username, user.ID)
			fmt.Fprintf(out, "Token: %s\n", tok.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newIssueTokenCmd(get func() *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token <username>",
		Short: "Print a user's token, issuing or refreshing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := get()
			user, err := d.lookup.GetUserByUsername(cmd.Context(), args[0])
			if errors.Is(err, repository.ErrUserNotFound) {
				return fmt.Errorf("no user named %q", args[0])
			}
			if err != nil {
				return err
			}

			tok, created, err := d.tokens.IssueOrRefresh(cmd.Context(), user.ID)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			verb := "refreshed"
			if created {
				verb = "issued"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tok.Key, verb)
			return nil
		},
	}
}

func newDeactivateTokenCmd(get func() *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate-token <key>",
		Short: "Deactivate a token so it can no longer authenticate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := get().tokens.Revoke(cmd.Context(), args[0], actor)
			switch {
			case errors.Is(err, token.ErrNotFound):
				return errors.New("no such token")
			case errors.Is(err, token.ErrBadCredentials):
				return errors.New("token is already inactive")
			case err != nil:
				return fmt.Errorf("deactivate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
}

func newSetUserActiveCmd(get func() *deps, name, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := get()
			user, err := d.lookup.GetUserByUsername(cmd.Context(), args[0])
			if errors.Is(err, repository.ErrUserNotFound) {
				return fmt.Errorf("no user named %q", args[0])
			}
			if err != nil {
				return err
			}
			if user.IsActive == active {
				fmt.Fprintf(cmd.OutOrStdout(), "User %q is already %s.\n", user.Username, activeWord(active))
				return nil
			}

			if err := d.lookup.SetUserActive(cmd.Context(), user.ID, active); err != nil {
				return fmt.Errorf("update user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %q %s.\n", user.Username, activeWord(active))
			return nil
		},
	}
}

func activeWord(active bool) string {
	if active {
		return "enabled"
	}
	return "disabled"
}

func newListTokensCmd(get func() *deps) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list-tokens",
		Short: "List tokens, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := get().listing.ListTokens(cmd.Context(), search)
			if err != nil {
				return fmt.Errorf("list tokens: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tUSER\tCREATED\tACTIVE")
			for _, t := range tokens {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", t.Key, t.Username, t.Created.Format(time.RFC3339), t.IsActive)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by username or email")
	return cmd
}

func newAuditLogCmd(get func() *deps) *cobra.Command {
	var count int64

	cmd := &cobra.Command{
		Use:   "audit-log",
		Short: "Show recent token lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := get()
			if d.audit == nil {
				return errors.New("audit log needs REDIS_URL")
			}
			if count < 1 {
				return errors.New("--count must be positive")
			}
			entries, err := d.audit.Recent(cmd.Context(), count)
			if err != nil {
				return fmt.Errorf("read audit log: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tEVENT\tTOKEN\tUSER\tACTOR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					e.Event.Time().Format(time.RFC3339), e.Event.Type, e.Event.TokenPrefix, e.Event.UserID, e.Event.Actor)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int64Var(&count, "count", 20, "number of events")
	return cmd
}
