package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/magsand/smartcharge/config"
	"github.com/magsand/smartcharge/core/model"
	"github.com/magsand/smartcharge/core/price"
	"github.com/magsand/smartcharge/core/schedule"
)

var (
	pricesPath string
	planHours  float64
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute and print a schedule from a captured price file",
	RunE:  plan,
}

func init() {
	planCmd.Flags().StringVar(&pricesPath, "prices", "", "JSON file with a raw hourly price series")
	planCmd.Flags().Float64Var(&planHours, "hours", 2, "required charging duration in hours")
	rootCmd.AddCommand(planCmd)
}

func plan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	payload, err := os.ReadFile(pricesPath)
	if err != nil {
		return fmt.Errorf("read prices: %w", err)
	}
	points, err := price.ParseRawSeries(payload)
	if err != nil {
		return err
	}

	now := time.Now()
	earliest, latest := cfg.Schedule.Window()
	start, finish := schedule.ResolveWindow(now, earliest, latest)
	selector, err := schedule.NewSelector(cfg.Schedule.Selection)
	if err != nil {
		return err
	}
	sch := selector.Select(model.PriceTimeline{Points: points}, model.ScheduleConstraints{
		RequiredHours: planHours,
		EarliestStart: start,
		LatestFinish:  finish,
	}, now)

	fmt.Printf("window %s .. %s, %.1fh needed\n", start.Format(time.RFC3339), finish.Format(time.RFC3339), planHours)
	if !sch.Feasible {
		fmt.Printf("INFEASIBLE: only %d eligible hours, continuous charging would be commanded\n", len(sch.Slots))
	}
	for _, p := range sch.Slots {
		fmt.Printf("  %s  %8.3f\n", p.HourStart.Format("2006-01-02 15:04"), p.Price)
	}
	fmt.Printf("total cost %.3f (mean eligible price %.3f)\n", sch.TotalCost, sch.MeanEligiblePrice)
	return nil
}
