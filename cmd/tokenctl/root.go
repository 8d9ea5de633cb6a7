package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tokenapi/tokenapi/internal/audit"
	"github.com/tokenapi/tokenapi/internal/cache"
	"github.com/tokenapi/tokenapi/internal/config"
	"github.com/tokenapi/tokenapi/internal/logging"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
	"github.com/tokenapi/tokenapi/internal/service"
	"github.com/tokenapi/tokenapi/internal/token"
)

// actor is recorded on audit events for deactivations made from the CLI.
const actor = "tokenctl"

type userLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
}

type tokenLister interface {
	ListTokens(ctx context.Context, search string) ([]*model.TokenListing, error)
}

type auditReader interface {
	Recent(ctx context.Context, count int64) ([]audit.Entry, error)
}

// deps is everything a subcommand may touch. audit is nil without Redis.
type deps struct {
	migrate func(ctx context.Context) (int64, error)
	users   *service.UserService
	lookup  userLookup
	tokens  *token.Manager
	listing tokenLister
	audit   auditReader
	close   func()
}

type opener func(ctx context.Context) (*deps, error)

func newRootCmd(open opener) *cobra.Command {
	var d *deps

	root := &cobra.Command{
		Use:           "tokenctl",
		Short:         "Administer token API users and tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			d, err = open(cmd.Context())
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if d != nil && d.close != nil {
				d.close()
			}
		},
	}

	get := func() *deps { return d }
	root.AddCommand(
		newMigrateCmd(get),
		newCreateSuperuserCmd(get),
		newIssueTokenCmd(get),
		newDeactivateTokenCmd(get),
		newSetUserActiveCmd(get, "disable-user", "Disable a user so their token stops authenticating", false),
		newSetUserActiveCmd(get, "enable-user", "Re-enable a disabled user", true),
		newListTokensCmd(get),
		newAuditLogCmd(get),
	)
	return root
}

// openDeps connects to PostgreSQL and, when REDIS_URL is set, to Redis.
func openDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, "text")

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %s", logging.SanitizeError(err, cfg.DatabaseURL))
	}

	closers := []func(){repo.Close}
	tokenCfg := token.Config{TTL: cfg.TokenTTL, CacheTTL: cfg.AuthCacheTTL, Logger: logger}

	var reader auditReader
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL, cache.Options{PoolSize: 2, MinIdleConns: 1})
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("connect to redis: %s", logging.SanitizeError(err, cfg.RedisURL))
		}
		publisher := audit.NewPublisher(c.Client(), logger, nil)
		tokenCfg.Cache = c
		tokenCfg.Audit = publisher
		reader = publisher
		closers = append(closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), audit.PublishTimeout*10)
			defer cancel()
			if err := publisher.Flush(flushCtx); err != nil {
				logger.Warn("audit events may be lost", "error", err)
			}
			_ = c.Close()
		})
	}

	tokens := token.NewManager(token.NewPostgresStore(repo), tokenCfg)

	return &deps{
		migrate: func(ctx context.Context) (int64, error) {
			if err := repo.Migrate(ctx); err != nil {
				return 0, err
			}
			return repo.MigrationVersion(ctx)
		},
		users:   service.NewUserService(repo, tokens, nil, logger),
		lookup:  repo,
		tokens:  tokens,
		listing: repo,
		audit:   reader,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}
