package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/konfevgas/web-gis-project/internal/api"
	"github.com/konfevgas/web-gis-project/internal/api/viewer"
	"github.com/konfevgas/web-gis-project/internal/config"
	"github.com/konfevgas/web-gis-project/internal/db"
	"github.com/konfevgas/web-gis-project/internal/engine"
	"github.com/konfevgas/web-gis-project/internal/humastar"
	"github.com/konfevgas/web-gis-project/internal/service"
	"github.com/konfevgas/web-gis-project/internal/templates"
	"github.com/konfevgas/web-gis-project/internal/ui"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string // Parent of the DuckDB catalog; empty keeps it in memory
	WebDir  string // Path to web/ directory for static files and templates
	Map     *config.Map
	Logger  *slog.Logger
	// NoDB skips the DuckDB layer catalog.
	NoDB bool
}

// Server is the web map HTTP server. It owns one map session shared by
// every connected page.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	links    *humastar.Links
	db       *sql.DB
	catalog  *db.Catalog
	stack    *engine.Stack
	session  *service.MapSession
	board    *ui.Board
	renderer *templates.Renderer
	viewer   *viewer.Handler
}

// New creates the server: the layer stack, the session bound to the viewer
// board, and every route.
func New(cfg Config) (*Server, error) {
	if cfg.Map == nil {
		cfg.Map = config.Default()
	}
	if err := cfg.Map.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	humaConfig := huma.DefaultConfig("web-gis-project API", api.Version)
	humaConfig.Info.Description = "Control plane of the Lund web map: basemap and WMS overlay visibility, the click marker and its coordinate readouts."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	stack := engine.NewStack()
	session, err := service.NewMapSession(cfg.Map, stack, service.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("building map session: %w", err)
	}
	board := ui.FromConfig(cfg.Map)
	if err := session.BindControls(board, session.Bindings()); err != nil {
		return nil, fmt.Errorf("binding controls: %w", err)
	}

	var renderer *templates.Renderer
	if cfg.WebDir != "" {
		dir := filepath.Join(cfg.WebDir, "templates")
		r, err := templates.New(dir)
		if err != nil {
			logger.Warn("viewer templates not loaded", "dir", dir, "error", err)
		} else {
			renderer = r
			logger.Info("loaded templates", "dir", dir)
		}
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humaAPI,
		links:    links,
		stack:    stack,
		session:  session,
		board:    board,
		renderer: renderer,
	}

	if !cfg.NoDB {
		s.openCatalog()
	}

	s.routes()
	return s, nil
}

func (s *Server) openCatalog() {
	conn, err := db.Open(db.Config{DataDir: s.config.DataDir, DBName: "webmap"})
	if err != nil {
		s.logger.Warn("layer catalog disabled", "error", err)
		return
	}
	ctx := context.Background()
	catalog, err := db.NewCatalog(ctx, conn)
	if err == nil {
		err = catalog.Sync(ctx, s.session.Layers())
	}
	if err == nil {
		err = db.Lock(ctx, conn)
	}
	if err != nil {
		s.logger.Warn("layer catalog disabled", "error", err)
		conn.Close()
		return
	}
	s.db = conn
	s.catalog = catalog
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document of every registered route.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Session returns the map session.
func (s *Server) Session() *service.MapSession { return s.session }

// Board returns the viewer board bound to the session.
func (s *Server) Board() *ui.Board { return s.board }

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// REST API (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.session)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.config.Map.GeoServer).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db, s.catalog).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	s.viewer = viewer.NewHandler(s.session, s.board, s.stack, s.renderer, s.logger)
	s.viewer.RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI, viewer.Tag)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/viewer", s.viewer.Page)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.renderer != nil {
		http.Redirect(w, r, "/viewer", http.StatusFound)
		return
	}
	for _, link := range s.links.For(humastar.EntryPath) {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "web-gis-project",
		"status":  "running",
	})
}
