// Package api serves stored analysis runs over HTTP.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/keyframe.report/internal/db"
	"github.com/banshee-data/keyframe.report/internal/httputil"
	"github.com/banshee-data/keyframe.report/internal/render"
	"github.com/banshee-data/keyframe.report/internal/version"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server answers read-only queries about stored runs.
type Server struct {
	runs       *db.RunStore
	plane      render.Projection
	assetsHost string
}

// NewServer returns a Server over runs. Charts are drawn on plane and load
// their javascript from assetsHost (empty means the go-echarts CDN).
func NewServer(runs *db.RunStore, plane render.Projection, assetsHost string) *Server {
	return &Server{runs: runs, plane: plane, assetsHost: assetsHost}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns a mux with every API route registered.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/version", getOnly(s.showVersion))
	mux.HandleFunc("/api/runs", getOnly(s.listRuns))
	mux.HandleFunc("/api/runs/{id}", getOnly(s.showRun))
	mux.HandleFunc("/api/runs/{id}/associations", getOnly(s.listAssociations))
	mux.HandleFunc("/api/runs/{id}/closures", getOnly(s.listLoopClosures))
	mux.HandleFunc("/api/runs/{id}/trajectory", getOnly(s.showTrajectory))
	mux.HandleFunc("/charts/runs/{id}", getOnly(s.showChart))
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			httputil.MethodNotAllowed(w)
			return
		}
		h(w, r)
	}
}

// writeStoreError maps RunStore errors onto status codes.
func writeStoreError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, db.ErrInvalidRunID):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, db.ErrRunNotFound):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve %s: %v", what, err))
	}
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
