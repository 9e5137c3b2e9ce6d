package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"teranga.app/internal/dashboard"
)

func (a *app) dashboardCmd() *cobra.Command {
	var force, watch bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show aggregate statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := dashboard.New(a.client, a.caches)
			if err := store.Fetch(cmd.Context(), force); err != nil {
				return err
			}
			if err := a.printStats(store); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			go store.Watch(cmd.Context(), interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					if err := a.printStats(store); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the local cache")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep refreshing until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "refresh interval with --watch")
	return cmd
}

func (a *app) printStats(store *dashboard.Store) error {
	stats, ok := store.Stats()
	if !ok {
		fmt.Fprintln(a.out, "No statistics yet")
		return nil
	}
	fmt.Fprintf(a.out, "Hotels: %d (%d active)  Rooms: %d (%d available)  Occupancy: %.1f%%  Rating: %.1f\n",
		stats.TotalHotels, stats.ActiveHotels, stats.TotalRooms, stats.AvailableRooms,
		stats.OccupancyRate, stats.AverageRating)

	if len(stats.PopularHotels) > 0 {
		fmt.Fprintln(a.out, "\nMost booked:")
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, h := range stats.PopularHotels {
			fmt.Fprintf(w, "  %s (%s)\t%d bookings\t%.1f\n", h.Name, h.City, h.Bookings, h.Rating)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if len(stats.RecentActivity) > 0 {
		fmt.Fprintln(a.out, "\nRecent activity:")
		for _, act := range stats.RecentActivity {
			fmt.Fprintf(a.out, "  %s  %s\n", act.Timestamp.Local().Format("15:04"), act.Message)
		}
	}
	return nil
}
