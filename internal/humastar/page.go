// page.go: OpenAPI document to page template data.
//
// BuildPageData extracts what a page template needs from the OpenAPI
// document: the initial data-signals JSON and the routes of the page's SSE
// endpoints, so the HTML never hardcodes URLs.
package humastar

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// PageData holds everything a page template needs from the OpenAPI spec.
// Templates use {{.Signals}} for data-signals init and {{.Route "click"}}
// for action URLs.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// Routes maps the last path segment of each operation under the page's
	// base path to the full path, e.g. "click" -> "/api/v1/viewer/click".
	Routes map[string]string

	// Streams are the GET endpoints opened on page load.
	Streams []string

	// Data is page specific template data.
	Data any
}

// Route returns the path registered for name, or "" if there is none.
func (pd PageData) Route(name string) string {
	return pd.Routes[name]
}

// DataInit returns a Datastar data-init attribute value opening every stream.
// e.g. "@get('/api/v1/viewer/events')"
func (pd PageData) DataInit() string {
	var parts []string
	for _, url := range pd.Streams {
		parts = append(parts, fmt.Sprintf("@get('%s')", url))
	}
	return strings.Join(parts, "; ")
}

// BuildPageData builds template data for the page served by the operations
// under basePath. GET operations tagged streamTag become page-load streams.
func BuildPageData(api huma.API, basePath, streamTag string, signals map[string]any, data any) (PageData, error) {
	pd := PageData{
		Routes: map[string]string{},
		Data:   data,
	}

	if signals == nil {
		signals = map[string]any{}
	}
	b, err := json.Marshal(signals)
	if err != nil {
		return pd, fmt.Errorf("encoding page signals: %w", err)
	}
	pd.Signals = string(b)

	for path, item := range api.OpenAPI().Paths {
		if !strings.HasPrefix(path, basePath+"/") || strings.Contains(path, "{") {
			continue
		}
		pd.Routes[lastSegment(path)] = path
		if item.Get != nil && hasTag(item.Get.Tags, streamTag) {
			pd.Streams = append(pd.Streams, path)
		}
	}
	slices.Sort(pd.Streams)
	return pd, nil
}

func hasTag(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}
