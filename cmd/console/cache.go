package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"teranga.app/internal/cache"
)

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local entity cache",
	}
	cmd.AddCommand(a.cacheInfoCmd(), a.cacheClearCmd())
	return cmd
}

func (a *app) cacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show what is cached and how old it is",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tPRESENT\tSIZE\tSTORED AT")
			for _, key := range cache.EntityKeys {
				info := a.caches.Stat(key)
				stored := "-"
				if !info.StoredAt.IsZero() {
					stored = info.StoredAt.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%v\t%d\t%s\n", info.Key, info.Present, info.Size, stored)
			}
			return w.Flush()
		},
	}
}

func (a *app) cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached entity (session stays)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.caches.InvalidateAll()
			fmt.Fprintln(a.out, "Cache cleared")
			return nil
		},
	}
}
