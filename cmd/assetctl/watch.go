package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/yungbote/slidedeck-backend/internal/app"
	"github.com/yungbote/slidedeck-backend/internal/realtime/bus"
)

var watchFlags struct {
	project string
	asJSON  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print asset change events as they are published",
	Long:  "Subscribes to the asset event channel. Requires REDIS_ADDR; the in-memory bus only sees events from its own process.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(a *app.App) error {
			if a.Cfg.Redis.Addr == "" {
				return fmt.Errorf("watch needs REDIS_ADDR")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var mu sync.Mutex
			err := a.Events.StartForwarder(ctx, func(ev bus.AssetEvent) {
				if watchFlags.project != "" && ev.ProjectID != watchFlags.project {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				printEvent(out, ev, watchFlags.asJSON)
			})
			if err != nil {
				return err
			}
			a.Log.Info("watching asset events", "channel", a.Cfg.Redis.Channel)
			<-ctx.Done()
			return nil
		})
	},
}

func printEvent(w io.Writer, ev bus.AssetEvent, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(ev)
		return
	}
	target := ev.RelativePath
	if target == "" {
		target = ev.ProjectID
	}
	fmt.Fprintf(w, "%s %-22s %s", ev.At.Format("15:04:05.000"), ev.Type, target)
	if ev.Count > 0 {
		fmt.Fprintf(w, " count=%d", ev.Count)
	}
	fmt.Fprintln(w)
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.project, "project", "", "only show events for this project id")
	watchCmd.Flags().BoolVar(&watchFlags.asJSON, "json", false, "print raw JSON events")
	rootCmd.AddCommand(watchCmd)
}
