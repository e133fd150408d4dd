package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/keyframe.report/internal/api"
	"github.com/banshee-data/keyframe.report/internal/db"
	"github.com/banshee-data/keyframe.report/internal/render"
	"github.com/banshee-data/keyframe.report/internal/timeutil"
)

type serveOptions struct {
	DBPath     string
	Listen     string
	Plane      render.Projection
	AssetsHost string
}

func parseServeFlags(args []string, stderr io.Writer) (*serveOptions, error) {
	fs := newFlagSet("serve", stderr)
	var (
		opts  serveOptions
		plane string
	)
	fs.StringVar(&opts.DBPath, "db", "results.db", "SQLite results database")
	fs.StringVar(&opts.Listen, "listen", ":8081", "HTTP listen address")
	fs.StringVar(&plane, "plane", "xy", "Default projection plane for charts: xy, xz or yz")
	fs.StringVar(&opts.AssetsHost, "assets-host", render.DefaultAssetsHost, "Base URL for echarts JavaScript assets")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: keyframes serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	p, err := render.ParseProjection(plane)
	if err != nil {
		return nil, err
	}
	opts.Plane = p
	return &opts, nil
}

// newServeHandler builds the API, chart and admin routes over database.
func newServeHandler(database *db.DB, opts *serveOptions) (http.Handler, error) {
	store := db.NewRunStore(database, timeutil.RealClock{})
	mux := api.NewServer(store, opts.Plane, opts.AssetsHost).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, fmt.Errorf("attach admin routes: %w", err)
	}
	return api.LoggingMiddleware(mux), nil
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseServeFlags(args, stderr)
	if err != nil {
		return err
	}

	database, err := db.NewDB(opts.DBPath)
	if err != nil {
		return fmt.Errorf("open results database: %w", err)
	}
	defer database.Close()

	handler, err := newServeHandler(database, opts)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: opts.Listen, Handler: handler}
	errc := make(chan error, 1)
	go func() {
		log.Printf("serving runs from %s on %s", opts.DBPath, opts.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		server.Close()
	}
	return nil
}
