package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/konfevgas/web-gis-project/internal/service"
)

// CatalogTable is the table holding the configured layers.
const CatalogTable = "layers"

const createCatalog = `CREATE TABLE IF NOT EXISTS layers (
	id              VARCHAR PRIMARY KEY,
	layer_group     VARCHAR NOT NULL,
	title           VARCHAR,
	control         VARCHAR,
	source_kind     VARCHAR NOT NULL,
	url             VARCHAR NOT NULL,
	wms_layer       VARCHAR,
	default_visible BOOLEAN NOT NULL,
	position        INTEGER NOT NULL,
	registered_at   TIMESTAMP NOT NULL
)`

// Entry is one catalog row. It records configuration only; the live
// visibility of a layer stays in the session.
type Entry struct {
	ID             string    `json:"id" doc:"Layer ID"`
	Group          string    `json:"group" doc:"Layer group"`
	Title          string    `json:"title" doc:"Display name"`
	Control        string    `json:"control" doc:"Bound control id"`
	SourceKind     string    `json:"sourceKind" doc:"tile or wms"`
	URL            string    `json:"url" doc:"Tile template or WMS endpoint"`
	WMSLayer       string    `json:"wmsLayer,omitempty" doc:"Qualified WMS layer name"`
	DefaultVisible bool      `json:"defaultVisible" doc:"Visibility at startup"`
	Position       int       `json:"position" doc:"Configuration order"`
	RegisteredAt   time.Time `json:"registeredAt" doc:"When the row was written"`
}

// Catalog writes and reads the layer catalog table.
type Catalog struct {
	db *sql.DB
}

// NewCatalog creates the catalog table if needed.
func NewCatalog(ctx context.Context, conn *sql.DB) (*Catalog, error) {
	if _, err := conn.ExecContext(ctx, createCatalog); err != nil {
		return nil, fmt.Errorf("creating %s table: %w", CatalogTable, err)
	}
	return &Catalog{db: conn}, nil
}

// Sync replaces the catalog with layers, in order.
func (c *Catalog) Sync(ctx context.Context, layers []service.Layer) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM layers"); err != nil {
		return fmt.Errorf("clearing %s: %w", CatalogTable, err)
	}
	now := time.Now().UTC()
	for i, l := range layers {
		var wmsLayer sql.NullString
		if v, ok := l.Source.Params[service.ParamLayers]; ok {
			wmsLayer = sql.NullString{String: v, Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO layers VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, string(l.Group), l.Title, l.Control, string(l.Source.Kind),
			l.Source.URL, wmsLayer, l.Visible, i, now,
		)
		if err != nil {
			return fmt.Errorf("inserting layer %q: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

// List returns the catalog rows in configuration order.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, layer_group, title, control, source_kind,
		url, wms_layer, default_visible, position, registered_at
		FROM layers ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e        Entry
			wmsLayer sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Group, &e.Title, &e.Control, &e.SourceKind,
			&e.URL, &wmsLayer, &e.DefaultVisible, &e.Position, &e.RegisteredAt); err != nil {
			return nil, err
		}
		e.WMSLayer = wmsLayer.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
