package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marketintel/internal/model"
)

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Manage monitored companies",
}

var (
	monitorAddName     string
	monitorAddScope    string
	monitorAddRegion   string
	monitorAddInterval int
)

var monitorsAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Start monitoring a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.Scheduler.Create(cmd.Context(), model.MonitoredCompany{
			BaseURL:            args[0],
			CompanyName:        monitorAddName,
			Scope:              monitorAddScope,
			Region:             monitorAddRegion,
			CheckIntervalHours: monitorAddInterval,
		})
		if err != nil {
			return err
		}

		fmt.Printf("monitoring %s (%s) every %dh, id=%s\n", m.CompanyName, m.BaseURL, m.CheckIntervalHours, m.ID)
		return nil
	},
}

var monitorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		monitors, err := env.Store.ListMonitors(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "list monitors")
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCOMPANY\tURL\tINTERVAL\tLAST CHECKED")
		for _, m := range monitors {
			last := "never"
			if !m.LastChecked.IsZero() {
				last = m.LastChecked.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%dh\t%s\n", m.ID, m.CompanyName, m.BaseURL, m.CheckIntervalHours, last)
		}
		return tw.Flush()
	},
}

var monitorsRefreshCmd = &cobra.Command{
	Use:   "refresh <monitor-id>",
	Short: "Re-analyze one monitored company now and print detected changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		events, err := env.Scheduler.Refresh(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("no changes detected")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

var monitorsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the periodic refresh loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("watching monitors, ctrl-c to stop")
		env.Scheduler.Run(ctx)
		return nil
	},
}

func init() {
	monitorsAddCmd.Flags().StringVar(&monitorAddName, "name", "", "company name (derived from URL when empty)")
	monitorsAddCmd.Flags().StringVar(&monitorAddScope, "scope", "", "market scope")
	monitorsAddCmd.Flags().StringVar(&monitorAddRegion, "region", "", "geographic focus")
	monitorsAddCmd.Flags().IntVar(&monitorAddInterval, "interval", 0, "check interval in hours (default from config)")

	monitorsCmd.AddCommand(monitorsAddCmd, monitorsListCmd, monitorsRefreshCmd, monitorsWatchCmd)
	rootCmd.AddCommand(monitorsCmd)
}
