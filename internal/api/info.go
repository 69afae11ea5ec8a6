package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/konfevgas/web-gis-project/internal/config"
)

type InfoHandler struct {
	dataDir   string
	dbOK      bool
	geoServer config.GeoServer
}

func NewInfoHandler(dataDir string, dbOK bool, gs config.GeoServer) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, geoServer: gs}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string   `json:"name" doc:"Service name"`
	Version   string   `json:"version" doc:"Service version"`
	DataDir   string   `json:"data_dir" doc:"Data directory path"`
	DB        bool     `json:"db" doc:"Whether the layer catalog database is available"`
	GeoServer string   `json:"geoserver" doc:"WMS endpoint of the overlays"`
	Workspace string   `json:"workspace" doc:"GeoServer workspace"`
	Features  []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"wms-overlays", "basemaps", "marker", "clipboard", "datastar"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "web-gis-project",
		Version:   "0.1.0",
		DataDir:   h.dataDir,
		DB:        h.dbOK,
		GeoServer: h.geoServer.URL,
		Workspace: h.geoServer.Workspace,
		Features:  features,
	}}, nil
}
