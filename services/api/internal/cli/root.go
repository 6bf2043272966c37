// Package cli implements portfolioctl, the operator command line for the
// portfolio API database and assets.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"termfolio/pkg/auth"
	"termfolio/pkg/storage"
	"termfolio/services/api/internal/app"
	"termfolio/services/api/internal/config"
)

// AppFactory builds the application core on demand. Commands that do not
// touch the database never call it.
type AppFactory func(ctx context.Context) (*app.App, error)

// FromConfig returns a factory that loads config.yaml and connects to
// Postgres and the configured asset store.
func FromConfig(path string) AppFactory {
	return func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		var objects storage.ObjectStore
		switch {
		case cfg.MinioEndpoint != "":
			objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		case cfg.AssetsDir != "":
			objects, err = storage.NewFileStore(cfg.AssetsDir)
		}
		if err != nil {
			return nil, fmt.Errorf("init asset storage: %w", err)
		}
		return app.New(app.Config{
			DatabaseURL:   cfg.DatabaseURL,
			Objects:       objects,
			RetentionDays: cfg.AnalyticsRetentionDays,
			Environment:   cfg.Environment,
			Version:       cfg.Version,
		})
	}
}

// NewRootCmd wires the portfolioctl command tree.
func NewRootCmd(factory AppFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "portfolioctl",
		Short:         "Operate the terminal portfolio API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSeedCommand(factory),
		newRollupCommand(factory),
		newCleanupCommand(factory),
		newDeleteUserCommand(factory),
		newUploadAssetCommand(factory),
		newHashPasswordCommand(),
	)
	return root
}

func newSeedCommand(factory AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in commands and their first responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			cmds, responses, err := a.Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d commands and %d responses\n", cmds, responses)
			return nil
		},
	}
}

func newRollupCommand(factory AppFactory) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Recompute daily analytics (yesterday and today unless --date is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			if date == "" {
				if err := a.RunDailyRollup(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daily analytics updated")
				return nil
			}
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			rollup, err := a.RollupDay(cmd.Context(), day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d visitors, %d commands, %d downloads, top %q\n",
				rollup.Date.Format("2006-01-02"), rollup.UniqueVisitors, rollup.TotalCommands,
				rollup.TotalDownloads, rollup.MostPopularCommand)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "single UTC day to recompute (YYYY-MM-DD)")
	return cmd
}

func newCleanupCommand(factory AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge failed log rows older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			execs, downloads, err := a.CleanupLogs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d executions and %d downloads\n", execs, downloads)
			return nil
		},
	}
}

func newDeleteUserCommand(factory AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <sessionId>",
		Short: "Erase a visitor; executions are kept anonymously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted visitor %s\n", args[0])
			return nil
		},
	}
}

func newUploadAssetCommand(factory AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-asset <pdf|md> <path>",
		Short: "Store the resume file served for a file type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}
			a, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			meta, err := a.UploadAsset(cmd.Context(), args[0], f, st.Size())
			if err != nil {
				return err
			}
			if meta.Pages > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s asset: %d bytes, %d pages\n", args[0], meta.Size, meta.Pages)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s asset: %d bytes\n", args[0], meta.Size)
			return nil
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read an admin password from stdin and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
