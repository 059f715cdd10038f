package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sells-group/geomap/internal/config"
	"github.com/sells-group/geomap/internal/export"
	"github.com/sells-group/geomap/internal/geoerr"
	"github.com/sells-group/geomap/internal/metrics"
	"github.com/sells-group/geomap/internal/pipeline"
	"github.com/sells-group/geomap/internal/workspace"
)

// renderCacheSize bounds how many rendered documents are kept in memory.
const renderCacheSize = 32

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(cfg, "serve")
		if err != nil {
			return err
		}

		srv := newServer(p, cfg.Server)
		return startServer(ctx, srv.routes(), resolvePort(servePort, cfg.Server.Port))
	},
}

type renderEntry struct {
	doc     *export.Document
	notices int
}

// server handles uploads. Runs are serialized: the pipeline core is
// single-run, so concurrent uploads queue on the semaphore.
type server struct {
	runner    pipeline.Runner
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	cache     *lru.Cache[uint64, renderEntry]
	maxUpload int64
}

func newServer(runner pipeline.Runner, sc config.ServerConfig) *server {
	var limiter *rate.Limiter
	if sc.RatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(sc.RatePerMin)), sc.RatePerMin)
	}
	// Only errors on a non-positive size.
	cache, _ := lru.New[uint64, renderEntry](renderCacheSize)

	return &server{
		runner:    runner,
		sem:       semaphore.NewWeighted(1),
		limiter:   limiter,
		cache:     cache,
		maxUpload: int64(sc.MaxUploadMB) << 20,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Geomap-Cache", "X-Geomap-Notices"},
		MaxAge:         300,
	}))
	r.Use(observe)

	r.Get("/", handleIndex)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.throttle)
		r.Post("/render", s.handleRender)
		r.Post("/inspect", s.handleInspect)
	})
	return r
}

// observe records request counts and latency by route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

func (s *server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many uploads; try again shortly.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	archive, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	key := xxhash.Sum64(archive.Data)
	if entry, hit := s.cache.Get(key); hit {
		serveDocument(w, entry, "hit")
		return
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Request canceled while waiting for a render slot.")
		return
	}
	defer s.sem.Release(1)

	res, err := s.runner.Run(r.Context(), archive)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if res.Empty {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "empty",
			"message": res.Message,
			"run_id":  res.RunID,
		})
		return
	}

	entry := renderEntry{doc: res.Document, notices: len(res.Notices)}
	s.cache.Add(key, entry)
	zap.L().Info("served render",
		zap.String("run_id", res.RunID),
		zap.String("archive", archive.Name),
		zap.Int("bytes", len(res.Document.Body)),
	)
	serveDocument(w, entry, "miss")
}

func (s *server) handleInspect(w http.ResponseWriter, r *http.Request) {
	archive, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Request canceled while waiting for a render slot.")
		return
	}
	defer s.sem.Release(1)

	res, err := s.runner.Inspect(r.Context(), archive)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(res))
}

// readUpload pulls the "file" part out of a multipart upload. It writes the
// error response itself and reports false when the request is unusable.
func (s *server) readUpload(w http.ResponseWriter, r *http.Request) (workspace.Archive, bool) {
	tooLargeMsg := fmt.Sprintf("Upload exceeds %d MB.", s.maxUpload>>20)
	if r.ContentLength > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
		return workspace.Archive{}, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return workspace.Archive{}, false
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart upload with a file field.")
		return workspace.Archive{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return workspace.Archive{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read the uploaded file.")
		return workspace.Archive{}, false
	}
	return workspace.Archive{Name: header.Filename, Data: data}, true
}

// statusFor maps a failure kind to an HTTP status. Upload problems are the
// client's (400), export and unclassified failures are ours (500), and a
// dataset we cannot map is unprocessable (422).
func statusFor(kind geoerr.Kind) int {
	switch kind {
	case geoerr.CorruptArchive, geoerr.MissingGeometryFile:
		return http.StatusBadRequest
	case geoerr.ExportFailure, geoerr.Unknown:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	kind := geoerr.KindOf(err)
	status := statusFor(kind)

	msg := kind.Message()
	var ge *geoerr.Error
	if errors.As(err, &ge) {
		msg = ge.UserMessage()
	}

	zap.L().Warn("upload failed", zap.String("kind", kind.String()), zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind.String()})
}

func serveDocument(w http.ResponseWriter, entry renderEntry, cache string) {
	w.Header().Set("Content-Type", entry.doc.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": entry.doc.Name}))
	w.Header().Set("X-Geomap-Cache", cache)
	w.Header().Set("X-Geomap-Notices", fmt.Sprint(entry.notices))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.doc.Body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexPage)
}

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>geomap</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 40rem; }
iframe { width: 100%; height: 32rem; border: 1px solid #ccc; margin-top: 1rem; }
#status { color: #a00; }
</style>
</head>
<body>
<h1>Upload a zipped shapefile</h1>
<form id="upload" action="/render" method="post" enctype="multipart/form-data">
<input type="file" name="file" accept=".zip" required>
<button type="submit">Render map</button>
</form>
<p id="status"></p>
<iframe id="map" title="map" hidden></iframe>
<script>
document.getElementById("upload").addEventListener("submit", async function (ev) {
  ev.preventDefault();
  var status = document.getElementById("status");
  var frame = document.getElementById("map");
  status.textContent = "Rendering...";
  frame.hidden = true;
  var resp = await fetch("/render", {method: "POST", body: new FormData(ev.target)});
  var type = resp.headers.get("Content-Type") || "";
  if (type.indexOf("text/html") === 0) {
    frame.srcdoc = await resp.text();
    frame.hidden = false;
    status.textContent = "";
    return;
  }
  var body = await resp.json();
  status.textContent = body.error || body.message || "Unexpected response.";
});
</script>
</body>
</html>
`

func resolvePort(flagPort, configured int) int {
	if flagPort != 0 {
		return flagPort
	}
	return configured
}

// startServer serves h until ctx is done, then shuts down gracefully.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	case err, ok := <-errCh:
		if ok && err != nil {
			return eris.Wrap(err, "server listen")
		}
		return nil
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
