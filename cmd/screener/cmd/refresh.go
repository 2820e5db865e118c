package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ApexScreener/internal/model"
)

var refreshPattern string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the signal cache for stale tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var runs []model.RunSummary
		if refreshPattern != "" {
			kind, perr := model.ParsePatternKind(refreshPattern)
			if perr != nil {
				return perr
			}
			sum, rerr := a.svc.Refresh(cmd.Context(), kind)
			if sum != nil {
				runs = append(runs, *sum)
			}
			err = rerr
		} else {
			runs, err = a.svc.RefreshAll(cmd.Context())
		}

		for _, r := range runs {
			fmt.Printf("%-12s run %s: processed %d, fresh %d, skipped %d, failed %d (%s)\n",
				r.Pattern, r.RunID, r.Processed, r.Fresh, r.Skipped, r.Failed, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
		}
		return err
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshPattern, "pattern", "", "only refresh this pattern (BULL_APPEAR, BULL_RAGING)")
}
