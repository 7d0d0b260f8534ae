package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	leaderboardCmd.Flags().StringVarP(&boardScope, "scope", "s", "global", "global or scope:<name>")
	leaderboardCmd.Flags().StringVarP(&boardMetric, "metric", "m", "points", "points, level, streak or badge_count")
	leaderboardCmd.Flags().IntVarP(&boardLimit, "limit", "n", 10, "entries to show")
	rootCmd.AddCommand(leaderboardCmd, rankCmd)
}

var (
	boardScope  string
	boardMetric string
	boardLimit  int
)

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"lb"},
	Short:   "Rank accounts and show one leaderboard",
	Args:    cobra.NoArgs,
	RunE:    runLeaderboard,
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Run a ranking pass and write ranks back to accounts",
	Args:  cobra.NoArgs,
	RunE:  runRank,
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if _, err := d.Engine.RankNow(cmd.Context()); err != nil {
		return err
	}
	board, err := d.Engine.Leaderboard(boardScope, boardMetric, boardLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), board)
	}
	if len(board.Entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No ranked accounts yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tACCOUNT\t%s\n", board.Metric)
	for _, e := range board.Entries {
		fmt.Fprintf(w, "%d\t%s\t%d\n", e.Rank, e.AccountID, e.Value)
	}
	return w.Flush()
}

func runRank(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	snap, err := d.Engine.RankNow(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), snap)
	}

	keys := make([]string, 0, len(snap.Boards))
	for k := range snap.Boards {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "pass %d at %s\n", snap.Version, snap.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, "SCOPE|METRIC\tENTRIES")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, len(snap.Boards[k].Entries))
	}
	for k, msg := range snap.Errors {
		fmt.Fprintf(w, "%s\tfailed: %s\n", k, msg)
	}
	return w.Flush()
}
