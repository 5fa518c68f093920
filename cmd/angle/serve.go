package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/midbel/angle/cache"
	"github.com/midbel/angle/cmd/cli"
	"github.com/midbel/angle/metrics"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
)

var serveCmd = cli.Command{
	Name:    "serve",
	Summary: "serve the stylesheets of a configuration over http",
	Handler: &ServeCmd{},
}

type ServeCmd struct {
	Config string
	Listen string
}

func (s *ServeCmd) Run(args []string) error {
	set := cli.NewFlagSet("serve")
	set.StringVar(&s.Config, "c", "", "configuration file")
	set.StringVar(&s.Listen, "l", "", "listen address")
	if err := set.Parse(args); err != nil {
		return err
	}
	if s.Config == "" {
		s.Config = set.Arg(0)
	}
	cfg, err := loadConfig(s.Config)
	if err != nil {
		return err
	}
	if s.Listen != "" {
		cfg.Listen = s.Listen
	}
	logger := newLogger(os.Stderr, logLevel(cfg.Trace))

	var store cache.Cache = cache.Nop()
	if cfg.Redis.Enabled() {
		rdb := cache.New(cfg.Redis.Addr, cache.WithTTL(cfg.Redis.TTL), cache.WithPrefix(cfg.Redis.Prefix))
		defer rdb.Close()
		store = rdb
	}
	srv, err := NewServer(cfg, store, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return srv.ListenAndServe(ctx)
}

type sheetInfo struct {
	Name   string   `json:"name"`
	Method string   `json:"method"`
	Modes  []string `json:"modes"`
}

type Server struct {
	config   Config
	sheets   map[string]*xslt.Stylesheet
	cache    cache.Cache
	metrics  *metrics.Collector
	registry *prometheus.Registry
	logger   *slog.Logger
}

func NewServer(cfg Config, store cache.Cache, logger *slog.Logger) (*Server, error) {
	if store == nil {
		store = cache.Nop()
	}
	srv := Server{
		config:   cfg,
		sheets:   make(map[string]*xslt.Stylesheet),
		cache:    store,
		metrics:  metrics.New(),
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	if err := srv.metrics.Register(srv.registry); err != nil {
		return nil, err
	}
	for name, file := range cfg.Stylesheets {
		sheet, err := xslt.Load(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sheet.Name = name
		srv.sheets[name] = sheet
	}
	return &srv, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestId)

	r.Get("/healthz", s.health)
	r.Get("/stylesheets", s.list)
	r.Post("/transform/{name}", s.transform)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.config.Listen, "stylesheets", len(s.sheets))
		errc <- hs.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sub, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	return hs.Shutdown(sub)
}

type requestKey struct{}

func requestIdFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestKey{}).(string)
	return id
}

func (s *Server) requestId(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		var (
			id  = uuid.NewString()
			now = time.Now()
			ww  = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		)
		ww.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestKey{}, id)
		next.ServeHTTP(ww, r.WithContext(ctx))

		s.logger.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(now),
		)
	}
	return http.HandlerFunc(fn)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	list := make([]sheetInfo, 0, len(s.sheets))
	for _, name := range slices.Sorted(maps.Keys(s.sheets)) {
		sheet := s.sheets[name]
		list = append(list, sheetInfo{
			Name:   name,
			Method: sheet.Output.Method,
			Modes:  sheet.Modes(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (s *Server) transform(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sheet, ok := s.sheets[name]
	if !ok {
		http.Error(w, fmt.Sprintf("%s: stylesheet not found", name), http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	var (
		ctx    = r.Context()
		mode   = s.config.Mode
		params = s.requestParams(r)
		logger = s.logger.With("id", requestIdFrom(ctx), "stylesheet", name)
	)
	if m := r.URL.Query().Get("mode"); m != "" {
		mode = m
	}
	key := cacheKey(name, mode, params, body)
	if res, ok, err := s.cache.Get(ctx, key); err != nil {
		logger.Warn("cache unavailable", "error", err)
	} else if ok {
		w.Header().Set("X-Cache", "hit")
		s.writeResult(w, sheet, res)
		return
	}

	doc, err := xml.ParseReader(bytes.NewReader(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	options := []xslt.Option{
		xslt.WithMode(mode),
		xslt.WithLogger(logger),
		xslt.WithMaxDepth(s.config.MaxDepth),
	}
	tracers := []xslt.Tracer{s.metrics}
	if s.config.Trace {
		tracers = append(tracers, xslt.LogTracer(logger))
	}
	options = append(options, xslt.WithTracer(xslt.MultiTracer(tracers...)))
	for n, v := range params {
		options = append(options, xslt.WithParam(n, v))
	}

	var (
		now = time.Now()
		buf bytes.Buffer
	)
	err = sheet.Generate(ctx, &buf, doc, options...)
	s.metrics.ObserveTransform(name, now, err)
	if err != nil {
		logger.Error("transform failed", "error", err)
		status := http.StatusUnprocessableEntity
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	if err := s.cache.Set(ctx, key, buf.Bytes()); err != nil {
		logger.Warn("cache unavailable", "error", err)
	}
	w.Header().Set("X-Cache", "miss")
	s.writeResult(w, sheet, buf.Bytes())
}

// requestParams merges the parameters of the configuration with the ones of
// the query string, mode excepted.
func (s *Server) requestParams(r *http.Request) map[string]string {
	params := maps.Clone(s.config.Params)
	if params == nil {
		params = make(map[string]string)
	}
	for n, vs := range r.URL.Query() {
		if n == "mode" || len(vs) == 0 {
			continue
		}
		params[n] = vs[len(vs)-1]
	}
	return params
}

func (s *Server) writeResult(w http.ResponseWriter, sheet *xslt.Stylesheet, res []byte) {
	ctype := "application/xml"
	if strings.EqualFold(sheet.Output.Method, "text") {
		ctype = "text/plain"
	}
	w.Header().Set("Content-Type", ctype+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(res)
}

func cacheKey(name, mode string, params map[string]string, body []byte) string {
	parts := [][]byte{
		[]byte(name),
		[]byte(mode),
	}
	for _, n := range slices.Sorted(maps.Keys(params)) {
		parts = append(parts, []byte(n), []byte(params[n]))
	}
	parts = append(parts, body)
	return cache.Key(parts...)
}
