package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ApexScreener/internal/model"
	"ApexScreener/internal/screener"
)

var (
	scanWinRate bool
	scanJSON    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [TICKER...]",
	Short: "Screen tickers live",
	Long: `Screen tickers live.

With one ticker every signal date is printed. With several, or none (the
whole ticker universe), only tickers with a recent signal above the price
floor are listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("win-rate") {
			cfg.Screener.ComputeWinRate = scanWinRate
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			resp, err := a.svc.ScanTicker(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if scanJSON {
				return printJSON(resp)
			}
			printScan(resp)
			return nil
		}

		tickers := args
		if len(tickers) == 0 {
			if tickers, err = a.tickers.Tickers(ctx); err != nil {
				return err
			}
		}
		report, err := a.svc.Screen(ctx, normalize(tickers))
		if err != nil {
			return err
		}
		if scanJSON {
			return printJSON(report)
		}
		printReport(report, a.svc.Config())
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanWinRate, "win-rate", false, "compute historical win rates (scans full history)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print JSON")
}

func normalize(tickers []string) []string {
	out := make([]string, len(tickers))
	for i, t := range tickers {
		out[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printScan(r *model.ScanResponse) {
	fmt.Printf("%s", r.Ticker)
	if r.LatestClose != nil {
		fmt.Printf("  close %.2f", *r.LatestClose)
	}
	if r.WinRate != nil {
		fmt.Printf("  win rate %.2f%%", *r.WinRate)
	}
	fmt.Println()
	for _, k := range model.AllPatterns {
		if dates, ok := r.ByPattern[k]; ok {
			fmt.Printf("  %-12s %d signals\n", k, len(dates))
			for _, d := range dates {
				fmt.Printf("    %s\n", d)
			}
		}
	}
}

func printReport(rep *screener.Report, c screener.Config) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tCLOSE\tLAST SIGNAL\tSIGNALS\tWIN RATE")
	for _, r := range rep.Results {
		last := ""
		if n := len(r.Dates); n > 0 {
			last = r.Dates[n-1]
		}
		closeText, winText := "-", "N/A"
		if r.LatestClose != nil {
			closeText = fmt.Sprintf("%.2f", *r.LatestClose)
		}
		if r.WinRate != nil {
			winText = fmt.Sprintf("%.2f%%", *r.WinRate)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Ticker, closeText, last, len(r.Dates), winText)
	}
	w.Flush()

	fmt.Printf("\n%d of %d tickers matched (%d failed), recency %d days, min price %.2f\n",
		len(rep.Results), rep.Scanned, rep.Failed, c.RecencyDays, c.MinPrice)
	if rep.OverallWinRate != nil {
		fmt.Printf("Overall win rate (+%d TD): %.2f%%\n", c.Horizon, *rep.OverallWinRate)
	}
}
