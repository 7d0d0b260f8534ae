package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/campusclub/gamify/internal/domain"
)

func init() {
	awardPointsCmd.Flags().StringVarP(&awardCategory, "category", "c", string(domain.CategorySpecial), "points category")
	awardPointsCmd.Flags().StringVar(&awardDescription, "description", "manual adjustment", "transaction description")
	awardBadgeCmd.Flags().StringVar(&awardReason, "reason", "", "why the badge was awarded")
	penalizeCmd.Flags().StringVar(&awardReason, "reason", "", "why points were deducted")

	awardCmd.AddCommand(awardPointsCmd, awardBadgeCmd, penalizeCmd)
	rootCmd.AddCommand(awardCmd)
}

var (
	awardCategory    string
	awardDescription string
	awardReason      string
)

var awardCmd = &cobra.Command{
	Use:   "award",
	Short: "Administrative points and badge awards",
}

var awardPointsCmd = &cobra.Command{
	Use:   "points <account> <amount>",
	Short: "Credit points as an adjustment",
	Args:  cobra.ExactArgs(2),
	RunE:  runAwardPoints,
}

var awardBadgeCmd = &cobra.Command{
	Use:   "badge <account> <badge>",
	Short: "Grant a badge directly",
	Args:  cobra.ExactArgs(2),
	RunE:  runAwardBadge,
}

var penalizeCmd = &cobra.Command{
	Use:   "penalty <account> <amount>",
	Short: "Deduct points as a penalty",
	Args:  cobra.ExactArgs(2),
	RunE:  runPenalize,
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, s)
	}
	return n, nil
}

func runAwardPoints(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := d.Engine.AwardPoints(cmd.Context(), args[0], amount, domain.Category(awardCategory), awardDescription)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), out)
	}
	out.PointsAwarded = amount
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runAwardBadge(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := d.Engine.AwardBadge(cmd.Context(), args[0], args[1], awardReason)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), out)
	}
	if len(out.BadgesEarned) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already holds %s\n", args[0], args[1])
		return nil
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runPenalize(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	deducted, err := d.Engine.Penalize(cmd.Context(), args[0], amount, awardReason)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]int64{"requested": amount, "deducted": deducted})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: -%d points (requested %d)\n", args[0], deducted, amount)
	return nil
}
