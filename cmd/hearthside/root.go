package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	hearthside "github.com/hearthside/client-go"
)

// Config holds the streams the command reads and writes.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config on the process streams.
func DefaultConfig() Config {
	return Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfg Config

	apiURL    string
	storePath string
	envFile   string
	timeout   time.Duration
	verbose   bool

	logger zerolog.Logger
	client *hearthside.Client
}

func run(ctx context.Context, args []string, cfg Config) error {
	a := &app{cfg: cfg, logger: zerolog.Nop()}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args[1:])
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hearthside",
		Short: "Hearthside is a command-line client for the Hearthside community API",
		Long: `A command-line client for the Hearthside community platform.
The session and the API base URL are kept in a local database between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", "", "API base URL (env "+hearthside.EnvAPIURL+")")
	flags.StringVar(&a.storePath, "store", "", "state database path (default: user config dir)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load, if present")
	flags.DurationVar(&a.timeout, "timeout", 10*time.Second, "per-request timeout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.getCmd(),
		a.postCmd(),
		a.deleteCmd(),
		a.configCmd(),
		a.postsCmd(),
	)
	return root
}

// setup loads the environment, opens the store and builds the client.
func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}

	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: a.cfg.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	path, err := a.resolveStorePath()
	if err != nil {
		return err
	}
	store, err := hearthside.OpenBoltStore(path)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}

	opts := []hearthside.Option{
		hearthside.WithStore(store),
		hearthside.WithTimeout(a.timeout),
		hearthside.WithLogger(a.logger),
		hearthside.WithUserAgent("hearthside-cli"),
	}
	if a.apiURL != "" {
		opts = append(opts, hearthside.WithBaseURL(a.apiURL))
	}
	client, err := hearthside.New(opts...)
	if err != nil {
		_ = store.Close()
		return err
	}
	a.client = client

	ctx := cmd.Context()
	if a.apiURL != "" {
		// A URL given on the command line replaces the remembered one.
		current, err := client.BaseURL(ctx)
		if err != nil {
			return err
		}
		if current != a.apiURL {
			if err := client.ForgetBaseURL(ctx); err != nil {
				return err
			}
		}
	}

	if _, err := client.Validate(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("could not validate stored session")
	}
	return nil
}

func (a *app) resolveStorePath() (string, error) {
	path := a.storePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "hearthside", "state.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return path, nil
}

func (a *app) close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close client")
		}
	}
}

// print writes v to stdout as indented JSON.
func (a *app) print(v any) error {
	enc := json.NewEncoder(a.cfg.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
