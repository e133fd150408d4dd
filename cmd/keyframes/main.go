// Command keyframes associates object detections with a keyframe trajectory,
// corrects local loop closures and stores, exports and serves the results.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/keyframe.report/internal/db"
	"github.com/banshee-data/keyframe.report/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: keyframes <command> [options]

Commands:
  analyse   associate detections with a trajectory and correct loop closures
  serve     serve stored runs over HTTP
  migrate   manage the results database schema
  version   print build information

Run "keyframes <command> -h" for command options.
`)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "analyse", "analyze":
		err = runAnalyse(ctx, args, os.Stdout, os.Stderr)
	case "serve":
		err = runServe(ctx, args, os.Stderr)
	case "migrate":
		err = runMigrate(args, os.Stdout, os.Stderr)
	case "version", "-version", "--version":
		fmt.Println(version.String())
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runMigrate(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	dbPath := fs.String("db", "results.db", "SQLite results database")
	fs.Usage = func() { db.PrintMigrateHelp(stderr) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}
