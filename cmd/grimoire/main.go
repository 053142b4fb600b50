package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Live-to-Role/grimoire/internal/app"
	"github.com/Live-to-Role/grimoire/internal/config"
	"github.com/Live-to-Role/grimoire/internal/httpapi"
	"github.com/Live-to-Role/grimoire/internal/library"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a fully wired App.
// The caller must defer a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "grimoire",
	Short: "Personal TTRPG PDF library manager",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
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
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Listen:     %s\n", cfg.Listen)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Trash:      %s\n", cfg.Trash.Type)
		fmt.Printf("Extensions: %s\n", strings.Join(cfg.Scan.Extensions, ", "))
		return nil
	},
}

// serve command

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the library API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		api := httpapi.NewAPI(a.Service(), a.ServiceLogger())
		srv := &http.Server{
			Addr:    a.Config().Listen,
			Handler: api.Router(),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			a.Logger().Info("server listening", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

// scan command

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan watched folders for library files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service().Scan(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d files: %d added, %d updated, %d removed, %d excluded\n",
			res.FilesSeen, res.FilesAdded, res.FilesUpdated, res.FilesRemoved, res.FilesExcluded)
		return nil
	},
}

// folder commands

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage watched folders",
}

var folderAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Register a watched folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		label, _ := cmd.Flags().GetString("label")
		folder, err := a.Service().AddFolder(args[0], label)
		if err != nil {
			return err
		}
		fmt.Printf("Folder registered: %s (%s)\n", folder.Path, folder.ID)
		return nil
	},
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		folders, err := a.Service().ListFolders()
		if err != nil {
			return err
		}
		for _, f := range folders {
			flags := ""
			if !f.Enabled {
				flags += " [disabled]"
			}
			if f.IsSourceOfTruth {
				flags += " [source of truth]"
			}
			fmt.Printf("%s  %s%s\n", f.ID, f.Path, flags)
		}
		return nil
	},
}

var folderRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a watched folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Service().RemoveFolder(args[0])
	},
}

var folderSourceOfTruthCmd = &cobra.Command{
	Use:   "set-source-of-truth ID",
	Short: "Mark a folder as the source of truth for duplicate resolution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Service().SetSourceOfTruth(args[0])
	},
}

var folderEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Enable scanning of a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFolderEnabled(args[0], true) },
}

var folderDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Disable scanning of a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFolderEnabled(args[0], false) },
}

func setFolderEnabled(id string, enabled bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	_, err = a.Service().UpdateFolder(id, library.FolderPatch{Enabled: &enabled})
	return err
}

// exclusion commands

var exclusionCmd = &cobra.Command{
	Use:   "exclusion",
	Short: "Manage exclusion rules",
}

var exclusionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an exclusion rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ruleType, _ := cmd.Flags().GetString("type")
		pattern, _ := cmd.Flags().GetString("pattern")
		priority, _ := cmd.Flags().GetInt("priority")

		rule, err := a.Service().AddRule(library.RuleType(ruleType), pattern, priority)
		if err != nil {
			return err
		}
		fmt.Printf("Rule added: %s %s (%s)\n", rule.RuleType, rule.Pattern, rule.ID)
		return nil
	},
}

var exclusionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exclusion rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rules, err := a.Service().ListRules()
		if err != nil {
			return err
		}
		for _, r := range rules {
			state := "enabled"
			if !r.Enabled {
				state = "disabled"
			}
			kind := "custom"
			if r.IsDefault {
				kind = "default"
			}
			fmt.Printf("%s  prio=%-4d %-12s %-20q %s, %s, excluded %d files\n",
				r.ID, r.Priority, r.RuleType, r.Pattern, kind, state, r.FilesExcluded)
		}
		return nil
	},
}

var exclusionRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a custom exclusion rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Service().RemoveRule(args[0])
	},
}

var exclusionEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Enable an exclusion rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], true) },
}

var exclusionDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Disable an exclusion rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], false) },
}

func setRuleEnabled(id string, enabled bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	_, err = a.Service().UpdateRule(id, library.RulePatch{Enabled: &enabled})
	return err
}

// dedupe commands

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Detect and resolve duplicate files",
}

var dedupeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List duplicate groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.Service().ListDuplicates()
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}
		for _, g := range groups {
			fmt.Printf("%s  %d copies, %d bytes wasted\n", shortHash(g.ContentHash), len(g.Duplicates)+1, g.WastedSpaceBytes)
			fmt.Printf("  keep   %s (%s)\n", g.Canonical.FilePath, g.KeepReason)
			for _, d := range g.Duplicates {
				fmt.Printf("  delete %s\n", d.FilePath)
			}
		}
		return nil
	},
}

var dedupeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show duplicate statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Service().Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Tracked files:    %d\n", stats.TotalProducts)
		fmt.Printf("Duplicate groups: %d\n", stats.UniqueDuplicateGroups)
		fmt.Printf("Duplicate files:  %d\n", stats.DuplicateCount)
		fmt.Printf("Wasted space:     %d bytes (%.2f MB)\n", stats.WastedSpaceBytes, stats.WastedSpaceMB)
		return nil
	},
}

var dedupePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview duplicate resolution without changing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.Service().BuildPreview()
		if err != nil {
			return err
		}
		if plan.TotalGroups == 0 {
			fmt.Println("Nothing to resolve.")
			return nil
		}
		if !plan.HasSourceOfTruth {
			fmt.Println("Warning: no source-of-truth folder configured; keeping newest copies.")
		}
		for _, e := range plan.Entries {
			fmt.Printf("%s  keep %s (%s), delete %d, free %d bytes\n",
				shortHash(e.ContentHash), e.Keep.FilePath, e.KeepReason, len(e.Delete), e.SpaceFreedBytes)
		}
		fmt.Printf("\n%d groups, %d duplicates, %d bytes reclaimable\n",
			plan.TotalGroups, plan.TotalDuplicates, plan.TotalSpaceBytes)
		return nil
	},
}

var dedupeResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve all duplicate groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		deleteFiles, _ := cmd.Flags().GetBool("delete-files")
		assumeYes, _ := cmd.Flags().GetBool("yes")

		if deleteFiles && !assumeYes {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("refusing to delete files without confirmation (pass --yes)")
			}
			fmt.Print("This will permanently delete duplicate files from disk. Type 'yes' to continue: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading confirmation: %w", err)
			}
			if strings.TrimSpace(line) != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service().Execute(cmd.Context(), deleteFiles)
		if err != nil {
			return err
		}

		fmt.Printf("Resolved %d groups: %d records removed, %d files deleted, %d already missing, %d bytes freed\n",
			res.GroupsProcessed, res.FilesRemoved, res.FilesDeleted, res.AlreadyMissing, res.BytesFreed)
		for _, e := range res.Errors {
			fmt.Printf("  error: %s: %s (%s)\n", e.FilePath, e.Message, e.Outcome)
		}
		if len(res.Errors) > 0 {
			return fmt.Errorf("%d files could not be processed", len(res.Errors))
		}
		return nil
	},
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// folder subcommands
	folderCmd.AddCommand(folderAddCmd)
	folderAddCmd.Flags().String("label", "", "Display label for the folder")
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderRemoveCmd)
	folderCmd.AddCommand(folderSourceOfTruthCmd)
	folderCmd.AddCommand(folderEnableCmd)
	folderCmd.AddCommand(folderDisableCmd)

	// exclusion subcommands
	exclusionCmd.AddCommand(exclusionAddCmd)
	exclusionAddCmd.Flags().String("type", "", "Rule type: folder_name, folder_path, filename, size_min, size_max, regex")
	exclusionAddCmd.Flags().String("pattern", "", "Rule pattern")
	exclusionAddCmd.Flags().Int("priority", 0, "Rule priority (higher matches first)")
	exclusionCmd.AddCommand(exclusionListCmd)
	exclusionCmd.AddCommand(exclusionRemoveCmd)
	exclusionCmd.AddCommand(exclusionEnableCmd)
	exclusionCmd.AddCommand(exclusionDisableCmd)

	// dedupe subcommands
	dedupeCmd.AddCommand(dedupeListCmd)
	dedupeCmd.AddCommand(dedupeStatsCmd)
	dedupeCmd.AddCommand(dedupePreviewCmd)
	dedupeCmd.AddCommand(dedupeResolveCmd)
	dedupeResolveCmd.Flags().Bool("delete-files", false, "Also delete duplicate files from disk")
	dedupeResolveCmd.Flags().Bool("yes", false, "Skip the interactive confirmation")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(exclusionCmd)
	rootCmd.AddCommand(dedupeCmd)
}
