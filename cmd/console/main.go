// Command console is the terminal back office for the Teranga hotel
// platform: session lifecycle, hotel catalog, support tickets, staff
// messages, outbound emails, and the stats dashboard, all against the
// remote API with a persisted local cache.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"teranga.app/internal/api"
	"teranga.app/internal/cache"
	"teranga.app/internal/config"
	"teranga.app/internal/kvstore"
	"teranga.app/internal/obs"
	"teranga.app/internal/prompt"
	"teranga.app/internal/session"
)

var version = "0.3.1"

type app struct {
	cfg     config.Config
	kv      kvstore.Store
	caches  *cache.Cache
	sess    *session.Manager
	client  *api.Client
	confirm prompt.Confirmer
	out     io.Writer
}

func (a *app) init(assumeYes bool) error {
	obs.Init()
	obs.InitBuildInfo(version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = os.Stdout

	dir, err := cfg.ResolveProfileDir()
	if err != nil {
		return err
	}
	if dir == "memory" {
		a.kv = kvstore.NewMemory()
	} else {
		store, err := kvstore.OpenSQLite(dir)
		if err != nil {
			return err
		}
		a.kv = store
	}

	a.caches = cache.New(a.kv)
	a.sess = session.NewManager(a.kv, a.caches)
	a.client = api.New(cfg.BaseURL, a.sess,
		api.WithSessionExpiredHook(a.sess.Expire),
		api.WithRateLimit(cfg.RatePerSec, cfg.RateBurst),
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	)
	a.sess.SetClient(a.client)

	if assumeYes {
		a.confirm = prompt.Always
	} else {
		a.confirm = &prompt.Terminal{In: os.Stdin, Out: os.Stdout}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", obs.Handler())
			srv := &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				obs.Logger().WithError(err).Warn("metrics listener")
			}
		}()
	}
	return nil
}

func (a *app) close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			obs.Logger().WithError(err).Warn("close store")
		}
	}
}

// requireSession guards commands that only make sense signed in.
func (a *app) requireSession() error {
	if !a.sess.IsAuthenticated() {
		return fmt.Errorf("not signed in, run `console login` first")
	}
	return nil
}

func main() {
	a := &app{}
	var assumeYes bool

	root := &cobra.Command{
		Use:           "console",
		Short:         "Teranga hotel back office",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(assumeYes)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every confirmation prompt")

	root.AddCommand(
		a.loginCmd(),
		a.signupCmd(),
		a.forgotPasswordCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.hotelsCmd(),
		a.ticketsCmd(),
		a.messagesCmd(),
		a.emailsCmd(),
		a.dashboardCmd(),
		a.cacheCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
