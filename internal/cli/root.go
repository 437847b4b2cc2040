// Package cli implements the satchel command-line interface.
//
// Commands share one App, built by NewRootCmd. Its configuration, logger,
// account store and session are initialized in PersistentPreRunE and
// released in PersistentPostRun.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/config"
	"github.com/mrz1836/satchel/internal/fiat"
	"github.com/mrz1836/satchel/internal/keystore"
	"github.com/mrz1836/satchel/internal/metrics"
	"github.com/mrz1836/satchel/internal/output"
	"github.com/mrz1836/satchel/internal/prompt"
	"github.com/mrz1836/satchel/internal/secure"
	"github.com/mrz1836/satchel/internal/session"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Version is set at build time.
//
//nolint:gochecknoglobals // overridden with -ldflags
var Version = "dev"

// Options replaces the process's streams and outside connections. Zero
// values select stdin/stdout/stderr, real RPC endpoints and the configured
// rate source.
type Options struct {
	In      io.Reader
	Out     io.Writer
	Err     io.Writer
	Dialer  chain.Dialer
	Rates   fiat.RateSource
	Metrics *metrics.Metrics
}

// App holds everything a command needs.
type App struct {
	opts Options

	// global flags
	homeDir      string
	chainID      uint64
	outputFormat string
	verbose      bool

	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	msg       *output.Messenger
	errOut    io.Writer
	prompter  *prompt.Prompter
	metrics   *metrics.Metrics
	registry  *chain.Registry
	store     *account.Store
	session   *session.Session
	closed    bool
}

// NewRootCmd builds the command tree. Callers that run it more than once or
// that need cleanup after a failed command should use Run instead.
func NewRootCmd(opts Options) *cobra.Command {
	_, root := newApp(opts)
	return root
}

// Run executes args and releases the session afterwards, whether or not the
// command succeeded.
func Run(ctx context.Context, args []string, opts Options) (*cobra.Command, error) {
	a, root := newApp(opts)
	defer a.close()

	root.SetArgs(args)
	return root.ExecuteContextC(ctx)
}

func newApp(opts Options) (*App, *cobra.Command) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	a := &App{opts: opts}

	root := &cobra.Command{
		Use:   "satchel",
		Short: "A custodial EVM wallet for the terminal",
		Long: `Satchel keeps password-encrypted accounts on disk and uses them to check
balances and send native coins or ERC-20 tokens on EVM networks.

Example:
  satchel account create main
  satchel balance main --chain 11155111
  satchel send main --to bob --amount 0.1`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.homeDir, "home", "", "satchel data directory (default: ~/.satchel)")
	flags.Uint64Var(&a.chainID, "chain", 0, "chain id of the network to use (default: from config)")
	flags.StringVarP(&a.outputFormat, "output", "o", "auto", "output format: text, json, auto")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging and metrics summary")

	root.AddCommand(
		a.accountCmd(),
		a.balanceCmd(),
		a.sendCmd(),
		a.tokenCmd(),
		a.beneficiaryCmd(),
		a.networkCmd(),
		a.backupCmd(),
		a.configCmd(),
		a.shellCmd(),
	)
	return a, root
}

// Execute runs the CLI on the process's streams and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := Run(ctx, os.Args[1:], Options{})
	if err == nil {
		return satchelerr.ExitSuccess
	}

	format := output.FormatText
	w := io.Writer(os.Stderr)
	if cmd != nil {
		w = cmd.ErrOrStderr()
		if f, ferr := cmd.Flags().GetString("output"); ferr == nil && output.ParseFormat(f) == output.FormatJSON {
			format = output.FormatJSON
		}
	}
	_ = output.FormatError(w, err, format)
	return satchelerr.ExitCode(err)
}

// init resolves configuration (file, then SATCHEL_* environment, then
// flags) and wires the session.
func (a *App) init(cmd *cobra.Command) error {
	home := a.homeDir
	if home == "" {
		home = os.Getenv(config.EnvPrefix + "_HOME")
	}
	if home == "" {
		home = config.DefaultHome()
	}
	home = config.ExpandHome(home)

	cfg, err := config.LoadOrDefault(config.Path(home))
	if err != nil {
		return err
	}
	cfg.Home = home
	if err := config.ApplyEnvironment(cfg); err != nil {
		return err
	}
	if a.homeDir != "" {
		cfg.Home = a.homeDir
	}
	if cmd.Flags().Changed("chain") {
		cfg.Network.DefaultChainID = a.chainID
	}
	if a.verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if a.outputFormat != "" && a.outputFormat != "auto" {
		cfg.Output.DefaultFormat = a.outputFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	keystore.SetScryptWorkFactor(cfg.Security.ScryptN, cfg.Security.ScryptP)
	secure.SetMemoryLock(cfg.Security.MemoryLock)

	a.logger, err = config.NewLogger(config.ParseLogLevel(cfg.GetLoggingLevel()), cfg.GetLoggingFile())
	if err != nil {
		a.logger = config.NullLogger()
	}

	out := cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.formatter = output.NewFormatter(output.ParseFormat(cfg.GetOutputFormat()), out)
	if a.formatter.IsJSON() {
		// keep stdout parseable
		out = a.errOut
	}
	a.msg = output.NewMessenger(out, a.errOut)
	a.prompter = prompt.New(cmd.InOrStdin(), a.errOut)

	a.metrics = a.opts.Metrics
	if a.metrics == nil {
		a.metrics = metrics.Global
	}

	a.registry, err = chain.LoadRegistry(cfg.ChainsPath())
	if err != nil {
		return err
	}
	a.store = account.NewStore(cfg.AccountsDir(), a.logger)

	a.session, err = session.New(session.Options{
		Registry: a.registry,
		Store:    a.store,
		Dialer:   a.opts.Dialer,
		Rates:    a.rateSource(),
		ClientOptions: []eth.Option{
			eth.WithRateLimiter(chain.NewRateLimiter(cfg.Network.RequestsPerSecond, cfg.Network.Burst)),
			eth.WithMetrics(a.metrics),
			eth.WithLogger(a.logger),
			eth.WithTimeout(cfg.Network.Timeout),
		},
		Metrics: a.metrics,
		Logger:  a.logger,
	}, cfg.Network.DefaultChainID)
	if err != nil {
		return err
	}

	a.logger.Debug("satchel %s home=%s chain=%d", Version, cfg.Home, cfg.Network.DefaultChainID)
	return nil
}

func (a *App) rateSource() fiat.RateSource {
	if a.opts.Rates != nil {
		return a.opts.Rates
	}
	if !a.cfg.Fiat.Enabled {
		return fiat.Disabled{}
	}
	return fiat.NewCryptoCompare(&fiat.Options{
		BaseURL:  a.cfg.Fiat.URL,
		Currency: a.cfg.Fiat.Currency,
		Metrics:  a.metrics,
	})
}

// close ends the session, zeroing any unlocked secret. It runs once.
func (a *App) close() {
	if a.closed {
		return
	}
	a.closed = true

	if a.session != nil {
		a.session.Close()
	}
	if a.cfg != nil && a.cfg.IsVerbose() && a.metrics != nil {
		a.printMetrics()
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func (a *App) printMetrics() {
	s := a.metrics.Snapshot()
	a.msg.Warnf("metrics: rpc=%d (errors %d, avg %.1fms) fiat=%d (errors %d) unlocks=%d (failed %d) transfers submitted=%d confirmed=%d failed=%d cancelled=%d",
		s.RPCCallsTotal, s.RPCErrorsTotal, s.RPCLatencyAvgMs,
		s.FiatLookups, s.FiatErrors,
		s.UnlocksTotal, s.UnlockFailures,
		s.TransfersSubmitted, s.TransfersConfirmed, s.TransfersFailed, s.TransfersCancelled)
}

// unlock asks for name's password until it opens the keystore or the
// attempts run out.
func (a *App) unlock(name string) error {
	if !a.store.Exists(name) {
		_, err := a.store.Container(name)
		return err
	}
	_, err := a.prompter.AskSecret(fmt.Sprintf("Password for %s", name), func(pw string) error {
		return a.session.Unlock(name, pw)
	})
	return err
}

// newPassword asks for a new password satisfying the account policy.
func (a *App) newPassword() (string, error) {
	return a.prompter.NewPassword(account.ValidatePassword)
}

// chainContext bounds the chain traffic of one operation.
func (a *App) chainContext(base context.Context) (context.Context, context.CancelFunc) {
	if base == nil {
		base = context.Background()
	}
	d := a.cfg.Network.Timeout
	if d <= 0 {
		d = eth.DefaultTimeout
	}
	return context.WithTimeout(base, 2*d)
}

// Bounds for work done outside a command's own chain context.
const (
	switchNetworkTimeout = 30 * time.Second
	shutdownTimeout      = 30 * time.Second
)
