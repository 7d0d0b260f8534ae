package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/campusclub/gamify/internal/app/engine"
)

func init() {
	activityCmd.Flags().StringArrayVarP(&activityData, "data", "d", nil, "activity data as key=value (repeatable)")
	activityCmd.AddCommand(activityTypesCmd)
	rootCmd.AddCommand(activityCmd)
}

var activityData []string

var activityCmd = &cobra.Command{
	Use:   "activity <account> <type>",
	Short: "Record an activity for an account",
	Example: `  gamify activity ana club_join -d related_id=chess
  gamify activity ana streak_milestone -d streak=14`,
	Args: cobra.ExactArgs(2),
	RunE: runActivity,
}

var activityTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List known activity types and their awards",
	Args:  cobra.NoArgs,
	RunE:  runActivityTypes,
}

func runActivity(cmd *cobra.Command, args []string) error {
	data, err := parseData(activityData)
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := d.Engine.RecordActivity(cmd.Context(), args[0], args[1], data)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runActivityTypes(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	types := d.Engine.Mapper().Types()
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), types)
	}

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPOINTS\tCATEGORY\tCOUNTER")
	for _, name := range names {
		s := types[name]
		points := fmt.Sprint(s.Points)
		if s.PerStreakDay > 0 {
			points = fmt.Sprintf("%d/day", s.PerStreakDay)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, points, s.Category, s.Counter)
	}
	return w.Flush()
}

// printOutcome renders what one command changed.
func printOutcome(w io.Writer, out engine.Outcome) {
	fmt.Fprintf(w, "%s: +%d points, balance %d, level %d", out.AccountID, out.PointsAwarded, out.Balance, out.Level)
	if out.LevelsGained > 0 {
		fmt.Fprintf(w, " (+%d)", out.LevelsGained)
	}
	fmt.Fprintf(w, ", streak %d\n", out.CurrentStreak)

	if len(out.BadgesEarned) > 0 {
		ids := make([]string, len(out.BadgesEarned))
		for i, g := range out.BadgesEarned {
			ids[i] = g.BadgeID
		}
		fmt.Fprintf(w, "  badges earned: %s\n", strings.Join(ids, ", "))
	}
	if len(out.AchievementsCompleted) > 0 {
		fmt.Fprintf(w, "  achievements completed: %s\n", strings.Join(out.AchievementsCompleted, ", "))
	}
}
