package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/konfevgas/web-gis-project/internal/config"
	"github.com/konfevgas/web-gis-project/internal/server"
)

// Options defines all CLI flags and env vars for the web map server.
// Flags: --host, --port, --config, --data-dir, --web-dir, --log-level
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_LOG_LEVEL
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8086"`
	Config   string `doc:"Map configuration file (.yaml, .yml or .toml); empty uses the built-in Lund map" short:"c"`
	DataDir  string `doc:"Directory for the DuckDB layer catalog; empty keeps it in memory" default:".data"`
	WebDir   string `doc:"Path to web/ directory" default:"web"`
	LogLevel string `doc:"Log level" enum:"debug,info,warn,error" default:"info"`
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func newServer(opts *Options, logger *slog.Logger) (*server.Server, error) {
	m, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		WebDir:  opts.WebDir,
		Map:     m,
		Logger:  logger,
	})
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := newLogger(opts.LogLevel)
		slog.SetDefault(logger)

		var srv *server.Server
		httpServer := &http.Server{Addr: fmt.Sprintf("%s:%d", opts.Host, opts.Port)}

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts, logger)
			if err != nil {
				fatal(logger, "server setup failed", err)
			}
			httpServer.Handler = srv

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("web map server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Config:  %s\n", configName(opts.Config))
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fatal(logger, "server error", err)
			}
		})

		hooks.OnStop(func() {
			httpServer.Close()
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "webmap"
	cli.Root().Short = "Interactive web map with WMS overlays and a click marker"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := newLogger("error")
			m, err := config.Load(opts.Config)
			if err != nil {
				fatal(logger, "loading config", err)
			}
			srv, err := server.New(server.Config{
				Host: opts.Host, Port: fmt.Sprintf("%d", opts.Port),
				Map: m, Logger: logger, NoDB: true,
			})
			if err != nil {
				fatal(logger, "building server", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// check subcommand: validate a map configuration
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the map configuration and print its layers",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			m, err := config.Load(opts.Config)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: invalid\n%s\n", configName(opts.Config), indent(err.Error()))
				os.Exit(1)
			}
			fmt.Printf("%s: ok\n", configName(opts.Config))
			fmt.Printf("  GeoServer: %s (workspace %s)\n", m.GeoServer.URL, m.GeoServer.Workspace)
			for _, b := range m.Basemaps {
				mark := " "
				if b.Visible {
					mark = "*"
				}
				fmt.Printf("  basemap %s %-18s %-24s %s\n", mark, b.ID, b.Control, b.URL)
			}
			for _, o := range m.Overlays {
				fmt.Printf("  overlay   %-18s %-24s %s\n", o.ID, o.Control, m.GeoServer.QualifiedLayer(o.Layer))
			}
		}),
	}
	cli.Root().AddCommand(checkCmd)

	cli.Run()
}

func configName(path string) string {
	if path == "" {
		return "built-in Lund map"
	}
	return path
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
