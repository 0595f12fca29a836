package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/obfx/themecheck/internal/config"
	"github.com/obfx/themecheck/internal/httputil"
	"github.com/obfx/themecheck/internal/logging"
	"github.com/obfx/themecheck/internal/metrics"
	"github.com/obfx/themecheck/internal/store"
	"github.com/obfx/themecheck/internal/updatecheck"
	"github.com/obfx/themecheck/pkg/api"
)

var version = "0.1.0"

var (
	log            = logging.L("cli")
	checkerMetrics = metrics.New(prometheus.DefaultRegisterer)
)

// cliOptions are the flags shared by every subcommand.
type cliOptions struct {
	cfgFile  string
	endpoint string
	output   string
}

type candidateFlags struct {
	pkg       string
	installed string
	available string
}

func (f *candidateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pkg, "package", "", "package (theme) identifier")
	cmd.Flags().StringVar(&f.installed, "installed", "", "installed version")
	cmd.Flags().StringVar(&f.available, "available", "", "available version")
	_ = cmd.MarkFlagRequired("package")
	_ = cmd.MarkFlagRequired("installed")
	_ = cmd.MarkFlagRequired("available")
}

func (f *candidateFlags) candidate() updatecheck.UpdateCandidate {
	return updatecheck.UpdateCandidate{
		PackageID:        f.pkg,
		InstalledVersion: f.installed,
		AvailableVersion: f.available,
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "themecheck",
		Short:         "Theme update impact checker",
		Long:          `themecheck - reports how much a pending theme update changes a site, using a remote theme check API`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is /etc/themecheck/themecheck.yaml)")
	root.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "", "theme check API endpoint URL")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")

	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newNoticeCmd(opts))
	root.AddCommand(newTransientCmd(opts))
	root.AddCommand(newDisplayCmd(opts))
	root.AddCommand(newCacheCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "themecheck v%s\n", version)
		},
	})
	return root
}

func newCheckCmd(opts *cliOptions) *cobra.Command {
	var (
		cf          candidateFlags
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate one update candidate and print its impact report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChecker(cmd, opts, func(ctx context.Context, c *updatecheck.Checker) error {
				report, err := c.Evaluate(ctx, cf.candidate())
				if err != nil {
					return err
				}
				if report == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "No update pending.")
					return nil
				}
				if err := writeOutput(cmd.OutOrStdout(), opts.output, report); err != nil {
					return err
				}
				if showMetrics {
					return writeMetrics(cmd.ErrOrStderr(), prometheus.DefaultGatherer)
				}
				return nil
			})
		},
	}
	cf.register(cmd)
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print checker counters to stderr")
	return cmd
}

func newNoticeCmd(opts *cliOptions) *cobra.Command {
	var (
		cf         candidateFlags
		name       string
		detailsURL string
	)
	cmd := &cobra.Command{
		Use:   "notice",
		Short: "Print the HTML update notice for one candidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChecker(cmd, opts, func(ctx context.Context, c *updatecheck.Checker) error {
				candidate := cf.candidate()
				report, err := c.Evaluate(ctx, candidate)
				if err != nil {
					return err
				}
				if report == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "No update pending.")
					return nil
				}
				if name == "" {
					name = candidate.PackageID
				}
				notice := updatecheck.BaseNotice(name, detailsURL, candidate.AvailableVersion)
				fmt.Fprintln(cmd.OutOrStdout(), updatecheck.Decorate(notice, candidate, report))
				return nil
			})
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the package id)")
	cmd.Flags().StringVar(&detailsURL, "details-url", "", "URL of the version details page")
	return cmd
}

func newTransientCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transient <state.json|->",
		Short: "Attach impact reports to a host update state and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var state updatecheck.UpdateState
			if err := readJSON(cmd.InOrStdin(), args[0], &state); err != nil {
				return err
			}
			return withChecker(cmd, opts, func(ctx context.Context, c *updatecheck.Checker) error {
				return writeOutput(cmd.OutOrStdout(), opts.output, c.OnUpdateCheck(ctx, &state))
			})
		},
	}
}

func newDisplayCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "display <state.json|-> <listings.json|->",
		Short: "Set update notices on package listings from a host update state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" && args[1] == "-" {
				return errors.New("only one of state and listings can be read from stdin")
			}
			var (
				state    updatecheck.UpdateState
				listings map[string]*updatecheck.Listing
			)
			if err := readJSON(cmd.InOrStdin(), args[0], &state); err != nil {
				return err
			}
			if err := readJSON(cmd.InOrStdin(), args[1], &listings); err != nil {
				return err
			}
			return withChecker(cmd, opts, func(ctx context.Context, c *updatecheck.Checker) error {
				return writeOutput(cmd.OutOrStdout(), opts.output, c.PrepareForDisplay(listings, &state))
			})
		},
	}
}

func newCacheCmd(opts *cliOptions) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the check cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every cached impact report by fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChecker(cmd, opts, func(ctx context.Context, c *updatecheck.Checker) error {
				all, err := c.Cache().All(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.output, all)
			})
		},
	})
	return cacheCmd
}

// withChecker loads and validates config, sets up logging and storage, and
// runs fn with a ready checker. The context passed to fn carries a logger
// tagged with the command path.
func withChecker(cmd *cobra.Command, opts *cliOptions, fn func(context.Context, *updatecheck.Checker) error) error {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.endpoint != "" {
		cfg.EndpointURL = opts.endpoint
	}

	if cfg.LogFile != "" {
		closer, err := logging.InitFile(cfg.LogFormat, cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
		defer closer.Close()
	} else {
		logging.Init(cfg.LogFormat, cfg.LogLevel, nil)
	}

	result := cfg.ValidateTiered()
	for _, w := range result.Warnings {
		log.Warn("config validation", logging.KeyError, w)
	}
	if result.HasFatals() {
		return fmt.Errorf("invalid config: %w", errors.Join(result.Fatals...))
	}

	s, err := store.Open(store.Config{Backend: cfg.CacheBackend, Path: cfg.CachePath})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer s.Close()

	retry := httputil.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	client := api.NewClient(cfg.EndpointURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithPackageField(cfg.PackageField),
		api.WithRetry(retry),
	)

	checker, err := updatecheck.New(updatecheck.Config{
		API:         client,
		Store:       s,
		Secret:      cfg.EffectiveSecret(),
		Concurrency: cfg.Concurrency,
		Metrics:     checkerMetrics,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.L("updatecheck").With("command", cmd.CommandPath())
	return fn(logging.NewContext(ctx, logger), checker)
}

func readJSON(stdin io.Reader, path string, v any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
