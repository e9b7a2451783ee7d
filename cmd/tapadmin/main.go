// Command tapadmin runs one-off operator tasks against the Tap4Impact
// database: seeding admin users and forcing a stats recompute.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"tap4impact/internal/server/config"
	"tap4impact/internal/server/database"
	"tap4impact/internal/server/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repo := database.NewRepository(db)

	switch os.Args[1] {
	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
		username := fs.String("username", "", "admin username")
		password := fs.String("password", "", "admin password")
		fs.Parse(os.Args[2:])

		if *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "create-admin requires -username and -password")
			os.Exit(2)
		}

		users := service.NewUsers(repo)
		user, err := users.Create(ctx, *username, *password)
		if err != nil {
			slog.Error("failed to create admin user", "error", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %s (%s)\n", user.Username, user.ID)

	case "recompute-stats":
		if err := repo.RecomputeStats(ctx); err != nil {
			slog.Error("failed to recompute stats", "error", err)
			os.Exit(1)
		}
		stats, err := repo.GetSystemStats(ctx)
		if err != nil {
			slog.Error("failed to read stats", "error", err)
			os.Exit(1)
		}
		fmt.Printf("stats: raised=%s donors=%d projects=%d\n",
			stats.TotalRaised.StringFixed(2), stats.TotalDonors, stats.TotalProjects)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tapadmin <command> [flags]

commands:
  create-admin -username <name> -password <pass>   create an admin user
  recompute-stats                                  rebuild the aggregate stats row`)
}
