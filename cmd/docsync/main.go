package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"docsync-go/internal/app"
	"docsync-go/internal/config"
	"docsync-go/internal/engine"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// promptedPassphraseEnv is where an interactively entered passphrase is
// parked so the encryption factory can pick it up.
const promptedPassphraseEnv = "DOCSYNC_PASSPHRASE"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SyncApp. The caller must defer app.Close().
func newApp(ctx context.Context) (*app.SyncApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := ensurePassphrase(cfg); err != nil {
		return nil, err
	}

	a, err := app.NewSyncApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// ensurePassphrase prompts for the encryption passphrase when age
// encryption is configured without a passphrase environment variable.
func ensurePassphrase(cfg *config.Config) error {
	if cfg.Encryption.Type != "age" || cfg.Encryption.PassphraseEnv != "" {
		return nil
	}
	if os.Getenv(promptedPassphraseEnv) == "" {
		fmt.Fprint(os.Stderr, "Passphrase: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if err := os.Setenv(promptedPassphraseEnv, string(pw)); err != nil {
			return fmt.Errorf("setting passphrase: %w", err)
		}
	}
	cfg.Encryption.PassphraseEnv = promptedPassphraseEnv
	return nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// version is stamped at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Two-way file/document synchronizer",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init ROOT",
	Short: "Initialize configuration for a storage root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])
		cfg.InstallID = uuid.New().String()

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Install ID: %s\n", cfg.InstallID)
		fmt.Printf("Storage Root: %s\n", cfg.Storage.Root)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Install ID:   %s\n", cfg.InstallID)
		fmt.Printf("Storage Root: %s\n", cfg.Storage.Root)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Chunk Store:  %s\n", cfg.ChunkStore.Type)
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		return nil
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push [PATH]",
	Short: "Store file(s) into the document store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		chunksOnly, _ := cmd.Flags().GetBool("chunks-only")

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			summary, err := a.PushAll(force)
			if err != nil {
				return fmt.Errorf("push failed: %w", err)
			}
			printSummary(summary)
			return nil
		}

		outcome, err := a.Push(args[0], force, chunksOnly)
		if err != nil {
			return fmt.Errorf("push failed: %w", err)
		}
		fmt.Printf("%s: %s\n", args[0], outcome.String())
		return nil
	},
}

// pull command
var pullCmd = &cobra.Command{
	Use:   "pull [PATH]",
	Short: "Materialize document(s) onto storage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			summary, err := a.PullAll(force)
			if err != nil {
				return fmt.Errorf("pull failed: %w", err)
			}
			printSummary(summary)
			return nil
		}

		outcome, err := a.Pull(args[0], force)
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}
		fmt.Printf("%s: %s\n", args[0], outcome.String())
		if outcome == engine.Deferred {
			fmt.Println("Document is conflicted; see 'docsync conflicts list'.")
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the storage tree and sync changes continuously",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Watch(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

// chunks command
var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Manage content chunks",
}

var chunksSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upload content chunks for all files without writing metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		progress, _ := cmd.Flags().GetBool("progress")

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SeedChunks(ctx, progress); err != nil {
			return fmt.Errorf("seeding chunks: %w", err)
		}
		fmt.Println("Chunk seeding complete.")
		return nil
	},
}

// conflicts command
var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Manage deferred conflicts",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conflicted paths awaiting resolution",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		paths, err := a.Conflicts()
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("No conflicts.")
			return nil
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Resolve a conflicted document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, _ := cmd.Flags().GetString("rev")

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if rev == "" {
			revs, err := a.ConflictRevisions(args[0])
			if err != nil {
				return err
			}
			if len(revs) == 0 {
				fmt.Println("No live revisions.")
				return nil
			}
			fmt.Printf("Live revisions of %s (winner first):\n", args[0])
			for _, r := range revs {
				fmt.Printf("  %s\n", r)
			}
			fmt.Println("\nRe-run with --rev REV to elect the survivor.")
			return nil
		}

		if err := a.ResolveConflict(args[0], rev); err != nil {
			return fmt.Errorf("resolving conflict: %w", err)
		}
		fmt.Printf("Resolved %s to %s\n", args[0], rev)
		return nil
	},
}

func printSummary(s *app.RunSummary) {
	fmt.Printf("applied: %d  unchanged: %d  skipped: %d  deferred: %d  failed: %d\n",
		s.Applied, s.Unchanged, s.Skipped, s.Deferred, s.Failed)
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// chunks subcommands
	chunksCmd.AddCommand(chunksSeedCmd)
	chunksSeedCmd.Flags().Bool("progress", false, "Log progress while seeding")

	// conflicts subcommands
	conflictsCmd.AddCommand(conflictsListCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)
	conflictsResolveCmd.Flags().String("rev", "", "Revision to keep as the survivor")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().BoolP("force", "f", false, "Bypass freshness comparison")
	pushCmd.Flags().Bool("chunks-only", false, "Write content chunks without document metadata")
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().BoolP("force", "f", false, "Bypass freshness comparison")
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(versionCmd)
}
