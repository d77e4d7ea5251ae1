package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lims/activity"
	"lims/api"
	"lims/config"
	"lims/console"
	"lims/library"
)

const maxTableWidth = 120

// flags override the values loaded from the environment when set.
type flags struct {
	store   string
	dataDir string
	dbPath  string
	addr    string
	redis   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "lims",
		Short:        "Library management system: books, members, borrowing",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.store, "store", "", "store backend: memory, json, sqlite3, sqlite or postgres")
	pf.StringVar(&f.dataDir, "data-dir", "", "directory of Books.json and Members.json")
	pf.StringVar(&f.dbPath, "db", "", "database file of the sqlite backends")
	pf.StringVar(&f.redis, "redis", "", "Redis address of the activity feed")

	root.AddCommand(&cobra.Command{
		Use:   "console",
		Short: "Run the interactive menu",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), f)
		},
	})

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(f)
		},
	}
	serve.Flags().StringVar(&f.addr, "addr", "", "listen address")
	root.AddCommand(serve)

	return root
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.store != "" {
		cfg.Store = f.store
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	if f.addr != "" {
		cfg.HTTPAddr = f.addr
	}
	if f.redis != "" {
		cfg.RedisAddr = f.redis
	}
	return cfg, cfg.Validate()
}

// app is everything a front end needs, opened from one Config.
type app struct {
	mgr    *library.LibraryManager
	stores *library.Stores
	feed   activity.Log
}

func openApp(cfg *config.Config) (*app, error) {
	stores, err := library.OpenStores(cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	var feed activity.Log = activity.NewMemoryLog(cfg.ActivityLimit)
	if cfg.RedisAddr != "" {
		rl, err := activity.NewRedisLog(cfg.RedisAddr, cfg.ActivityLimit)
		if err != nil {
			log.Printf("activity: %v; keeping activity in memory", err)
		} else {
			feed = rl
		}
	}

	mgr := library.NewLibraryManager(stores.Books, stores.Members, library.WithActivity(feed))
	return &app{mgr: mgr, stores: stores, feed: feed}, nil
}

func (a *app) Close() {
	if err := a.feed.Close(); err != nil {
		log.Printf("activity: close: %v", err)
	}
	if err := a.stores.Close(); err != nil {
		log.Printf("store: close: %v", err)
	}
}

func runConsole(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	opts := []console.Option{console.WithBanner(term.IsTerminal(int(os.Stdin.Fd())))}
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil {
			opts = append(opts, console.WithWidth(min(w, maxTableWidth)))
		}
	}
	return console.New(a.mgr, os.Stdin, os.Stdout, opts...).Run(ctx)
}

func runServer(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.New(a.mgr, a.feed)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(cfg.HTTPAddr) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Println("Server exiting")
	return nil
}
