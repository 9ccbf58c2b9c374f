package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/infra"
	"github.com/eliteGoblin/focusd/feedgate/internal/policy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cooldown status of every monitored app",
	Long:  `Shows each app's configured tier, whether it is cooling down and how many relaxed dismissals are left today.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored applications",
	Long:  `Shows all monitored applications with their target phrases, process names and daily relaxed quota.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var intervalCmd = &cobra.Command{
	Use:   "interval",
	Short: "Show or change an app's cooldown tier",
}

var intervalGetCmd = &cobra.Command{
	Use:   "get <app-id>",
	Short: "Print the configured cooldown of an app",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntervalGet,
}

var intervalSetCmd = &cobra.Command{
	Use:   "set <app-id> <duration>",
	Short: "Select a cooldown tier for an app",
	Long: `Selects a cooldown tier. The duration must be on the tier menu
(see 'feedgate interval tiers'), e.g. 2m or 600 (seconds).`,
	Args: cobra.ExactArgs(2),
	RunE: runIntervalSet,
}

var intervalTiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Print the strict and relaxed tier menus",
	Args:  cobra.NoArgs,
	RunE:  runIntervalTiers,
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage daily relaxed quotas",
}

var quotaSetCmd = &cobra.Command{
	Use:   "set <app-id> <count>",
	Short: "Set how many relaxed dismissals an app gets per day",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuotaSet,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage user-added apps",
}

var appsAddCmd = &cobra.Command{
	Use:   "add <app-id>",
	Short: "Monitor an additional app",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsAdd,
}

var appsRemoveCmd = &cobra.Command{
	Use:   "remove <app-id>",
	Short: "Stop monitoring a user-added app",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsRemove,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	jsonOutput bool

	addName      string
	addPhrases   []string
	addProcesses []string
	addQuota     int
	addExempt    bool
)

func addCommands(root *cobra.Command) {
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	appsAddCmd.Flags().StringVar(&addName, "name", "", "Display name (defaults to the app ID)")
	appsAddCmd.Flags().StringSliceVar(&addPhrases, "phrase", nil, "Text that marks the feed as on screen (repeatable)")
	appsAddCmd.Flags().StringSliceVar(&addProcesses, "process", nil, "Process name for the liveness check (repeatable)")
	appsAddCmd.Flags().IntVar(&addQuota, "quota", policy.DefaultRelaxedQuota, "Daily relaxed quota")
	appsAddCmd.Flags().BoolVar(&addExempt, "exempt", false, "Dismiss without a challenge")

	intervalCmd.AddCommand(intervalGetCmd, intervalSetCmd, intervalTiersCmd)
	quotaCmd.AddCommand(quotaSetCmd)
	appsCmd.AddCommand(appsAddCmd, appsRemoveCmd)

	root.AddCommand(statusCmd, listCmd, intervalCmd, quotaCmd, appsCmd, versionCmd)
}

// withStack runs fn over an opened stack and closes it afterwards.
func withStack(fn func(s *stack, logger *zap.Logger) error) error {
	logger := commandLogger()
	defer func() { _ = logger.Sync() }()

	s, err := openStack(logger, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()
	return fn(s, logger)
}

type statusJSON struct {
	App                string `json:"app"`
	Name               string `json:"name"`
	ConfiguredInterval string `json:"configured_interval"`
	Cooling            bool   `json:"cooling"`
	HiddenUntil        string `json:"hidden_until,omitempty"`
	RelaxedUsed        int    `json:"relaxed_used"`
	RelaxedRemaining   int    `json:"relaxed_remaining"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withStack(func(s *stack, logger *zap.Logger) error {
		gate := s.newGate(logger, "", nil, nil)
		defer gate.Close()
		statuses := gate.Status()

		if jsonOutput {
			out := make([]statusJSON, 0, len(statuses))
			for _, st := range statuses {
				row := statusJSON{
					App:                st.App.ID,
					Name:               st.App.Name,
					ConfiguredInterval: st.ConfiguredInterval.String(),
					Cooling:            st.Cooling,
					RelaxedUsed:        st.RelaxedUsed,
					RelaxedRemaining:   st.RelaxedRemaining,
				}
				if st.Cooling {
					row.HiddenUntil = st.HiddenUntil.Format(time.RFC3339)
				}
				out = append(out, row)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Println("\n=== feedgate Status ===")
		printEngineState(s.dataDir)
		fmt.Printf("Execution mode: %s\n", s.execMode.Mode)
		fmt.Printf("Data dir: %s\n\n", s.dataDir)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "APP\tINTERVAL\tSTATE\tRELAXED LEFT")
		for _, st := range statuses {
			state := "ready"
			if st.Cooling {
				state = fmt.Sprintf("cooling (%s left)", time.Until(st.HiddenUntil).Round(time.Second))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\n",
				st.App.Name, st.ConfiguredInterval, state,
				st.RelaxedRemaining, st.App.DailyRelaxedQuota)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println("=======================")
		return nil
	})
}

func printEngineState(dataDir string) {
	instances := infra.NewFileEngineRegistry(dataDir, infra.NewProcessManager())
	entry, err := instances.Get()
	if err != nil || entry == nil {
		fmt.Println("Engine: NOT RUNNING")
		return
	}
	if alive, _ := instances.IsAlive(); !alive {
		fmt.Println("Engine: NOT RUNNING (stale record)")
		return
	}
	fmt.Printf("Engine: RUNNING (v%s)\n", entry.Version)
	if entry.LastHeartbeat > 0 {
		lastBeat := time.Unix(entry.LastHeartbeat, 0)
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
	}
}

func runList(cmd *cobra.Command, args []string) error {
	return withStack(func(s *stack, _ *zap.Logger) error {
		fmt.Println("\n=== Monitored Applications ===")

		for _, app := range s.registry.GetAll() {
			fmt.Printf("\n[%s] %s (%s)\n", app.ID, app.Name, app.Provenance)
			if app.ChallengeExempt {
				fmt.Println("  Challenge: exempt")
			}
			if app.HasPhrases() {
				fmt.Println("  Target phrases:")
				for _, p := range app.TargetPhrases {
					fmt.Printf("    - %s\n", p)
				}
			} else {
				fmt.Println("  Target: whole app")
			}
			if len(app.ProcessNames) > 0 {
				fmt.Println("  Processes:")
				for _, p := range app.ProcessNames {
					fmt.Printf("    - %s\n", p)
				}
			}
			fmt.Printf("  Daily relaxed quota: %d\n", app.DailyRelaxedQuota)
		}

		fmt.Println("\n==============================")
		return nil
	})
}

func runIntervalGet(cmd *cobra.Command, args []string) error {
	return withStack(func(s *stack, _ *zap.Logger) error {
		if _, ok := s.registry.Get(args[0]); !ok {
			return fmt.Errorf("%w: %s", policy.ErrUnknownApp, args[0])
		}
		d := s.intervals.GetConfiguredInterval(args[0])
		kind := "strict"
		if s.intervals.IsRelaxedTier(d) {
			kind = "relaxed"
		}
		fmt.Printf("%s %s (%s)\n", args[0], d, kind)
		return nil
	})
}

func runIntervalSet(cmd *cobra.Command, args []string) error {
	d, err := parseInterval(args[1])
	if err != nil {
		return err
	}
	return withStack(func(s *stack, logger *zap.Logger) error {
		gate := s.newGate(logger, "", nil, nil)
		defer gate.Close()

		if err := gate.SetConfiguredInterval(args[0], d); err != nil {
			return err
		}
		fmt.Printf("%s cooldown set to %s\n", args[0], d)
		if s.intervals.IsRelaxedTier(d) {
			fmt.Println("Relaxed tiers revert to the strict maximum after one use.")
		}
		return nil
	})
}

// parseInterval accepts a Go duration ("2m") or whole seconds ("120").
func parseInterval(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func runIntervalTiers(cmd *cobra.Command, args []string) error {
	return withStack(func(s *stack, _ *zap.Logger) error {
		fmt.Printf("Strict:  %s\n", joinDurations(s.intervals.StrictTiers()))
		fmt.Printf("Relaxed: %s\n", joinDurations(s.intervals.RelaxedTiers()))
		if s.intervals.EnforcesQuota() {
			fmt.Println("Relaxed quota: enforced")
		} else {
			fmt.Println("Relaxed quota: advisory")
		}
		return nil
	})
}

func joinDurations(ds []time.Duration) string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ", ")
}

func runQuotaSet(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quota %q: %w", args[1], err)
	}
	return withStack(func(s *stack, logger *zap.Logger) error {
		gate := s.newGate(logger, "", nil, nil)
		defer gate.Close()

		if err := gate.SetRelaxedQuota(args[0], n); err != nil {
			return err
		}
		fmt.Printf("%s relaxed quota set to %d per day\n", args[0], n)
		return nil
	})
}

func runAppsAdd(cmd *cobra.Command, args []string) error {
	return withStack(func(s *stack, _ *zap.Logger) error {
		app := domain.MonitoredApp{
			ID:                args[0],
			Name:              addName,
			TargetPhrases:     addPhrases,
			ProcessNames:      addProcesses,
			DailyRelaxedQuota: addQuota,
			ChallengeExempt:   addExempt,
		}
		if len(app.ProcessNames) == 0 {
			// Android process names are the package ID.
			app.ProcessNames = []string{app.ID}
		}
		if err := s.registry.AddCustom(app); err != nil {
			return err
		}
		fmt.Printf("Now monitoring %s\n", args[0])
		return nil
	})
}

func runAppsRemove(cmd *cobra.Command, args []string) error {
	return withStack(func(s *stack, _ *zap.Logger) error {
		if err := s.registry.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("No longer monitoring %s\n", args[0])
		return nil
	})
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("feedgate %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
