package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitaria/catalog/internal/client/client"
	"github.com/vitaria/catalog/internal/client/config"
	"github.com/vitaria/catalog/internal/client/repositories/session"
	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/logging"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// App holds what every catalogctl command shares: configuration, the local
// state database and the API client.
type App struct {
	configPath string
	serverURL  string
	healthAddr string
	statePath  string
	verbose    bool

	cfg     *config.Config
	log     logging.Logger
	db      *sql.DB
	repos   *client.Repositories
	api     *client.HTTPClient
	exec    *upload.Executor
	session *session.Session
	tty     bool

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

func NewApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{in: bufio.NewReader(in), out: out, errOut: errOut, now: time.Now}
}

// Execute runs catalogctl with the process arguments.
func Execute(ctx context.Context) error {
	a := NewApp(os.Stdin, os.Stdout, os.Stderr)
	defer a.Close()
	return a.Command().ExecuteContext(ctx)
}

// Command builds the command tree bound to a.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage catalog products and their images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "path to a JSON config file")
	pf.StringVar(&a.serverURL, "server", "", "catalog API base URL")
	pf.StringVar(&a.healthAddr, "health-addr", "", "gRPC health address")
	pf.StringVar(&a.statePath, "state", "", "local state database file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.productCmd(),
		a.avatarCmd(),
		a.urlsCmd(),
		a.discardCmd(),
		a.healthCmd(),
		a.activityCmd(),
		a.userCmd(),
	)
	return root
}

// Close releases the state database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *App) init(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = a.serverURL
	}
	if flags.Changed("health-addr") {
		cfg.HealthAddr = a.healthAddr
	}
	if flags.Changed("state") {
		cfg.StatePath = a.statePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.log = logging.NewText(a.errOut, level)
	a.tty = isTerminal(int(os.Stderr.Fd()))

	db, err := client.InitDatabase(ctx, cfg.StatePath)
	if err != nil {
		return err
	}
	a.db = db
	a.repos = client.NewRepositories(db)
	a.api = client.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout)
	a.exec = upload.NewExecutor(nil)

	sess, err := a.repos.Session.Load(ctx)
	if err != nil {
		return err
	}
	switch {
	case sess == nil:
	case sess.ServerURL != cfg.ServerURL:
		a.log.Debug(ctx, "stored session belongs to another server", "server", sess.ServerURL)
	case sess.Expired(a.now()):
		a.log.Debug(ctx, "stored session expired", "expires_at", sess.ExpiresAt)
	default:
		a.session = sess
		a.api.SetToken(sess.Token)
	}
	return nil
}

func (a *App) requireLogin() error {
	if a.session == nil {
		return fmt.Errorf("%w: run `catalogctl login` first", client.ErrNotLoggedIn)
	}
	return nil
}

// loggedIn wraps run with a login check.
func (a *App) loggedIn(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.requireLogin(); err != nil {
			return err
		}
		return run(cmd, args)
	}
}
