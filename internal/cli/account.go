package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/campusclub/gamify/internal/domain"
)

func init() {
	accountHistoryCmd.Flags().StringSliceVarP(&historyTypes, "type", "t", nil, "filter by transaction type (repeatable)")
	accountHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "transactions to show")
	accountCmd.AddCommand(accountHistoryCmd, accountScopeCmd)
	rootCmd.AddCommand(accountCmd)
}

var (
	historyTypes []string
	historyLimit int
)

var accountCmd = &cobra.Command{
	Use:   "account <id>",
	Short: "Show an account's points, level, badges and achievements",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccount,
}

var accountHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show an account's transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountHistory,
}

var accountScopeCmd = &cobra.Command{
	Use:   "scope <id> <scope>",
	Short: "Assign an account to a leaderboard scope (\"\" clears it)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountScope,
}

func runAccount(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := d.Engine.Profile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p)
	}

	a := p.Account
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Account:\t%s\n", a.ID)
	if a.Scope != "" {
		fmt.Fprintf(w, "Scope:\t%s\n", a.Scope)
	}
	fmt.Fprintf(w, "Points:\t%d (lifetime %d)\n", a.TotalPoints, a.LifetimePoints)
	fmt.Fprintf(w, "Level:\t%d (%.0f%% to next)\n", a.Level, p.LevelProgress)
	fmt.Fprintf(w, "Streak:\t%d days (best %d)\n", a.CurrentStreak, a.LongestStreak)
	fmt.Fprintf(w, "Engagement:\t%d\n", p.EngagementScore)
	if a.GlobalRank > 0 {
		fmt.Fprintf(w, "Rank:\t#%d\n", a.GlobalRank)
	}
	fmt.Fprintf(w, "Categories:\tactivity %d, social %d, leadership %d, academic %d, special %d\n",
		a.ActivityPoints, a.SocialPoints, a.LeadershipPoints, a.AcademicPoints, a.SpecialPoints)
	for _, g := range p.Badges {
		fmt.Fprintf(w, "Badge:\t%s\t%s\n", g.BadgeID, g.EarnedAt.Format("2006-01-02"))
	}
	for _, ap := range p.Achievements {
		fmt.Fprintf(w, "Achievement:\t%s\t%s %.0f%%\n", ap.AchievementID, ap.Status, ap.Percentage)
	}
	return w.Flush()
}

func runAccountHistory(cmd *cobra.Command, args []string) error {
	var types []domain.TxType
	for _, t := range historyTypes {
		tt := domain.TxType(t)
		if !tt.Valid() {
			return fmt.Errorf("unknown transaction type %q", t)
		}
		types = append(types, tt)
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	txs, err := d.Engine.History(cmd.Context(), args[0], types, historyLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), txs)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, t := range txs {
		fmt.Fprintf(w, "%s\t%s\t%+d\t%s\t%s\n",
			t.CreatedAt.Format("2006-01-02 15:04"), t.Type, t.Amount, t.Category, t.Description)
	}
	return w.Flush()
}

func runAccountScope(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	a, err := d.Engine.SetScope(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now ranks in %q\n", a.ID, a.Scope)
	return nil
}
