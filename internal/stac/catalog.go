package stac

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	CatalogID          = "burst-catalog"
	CatalogDescription = "A catalog containing Sentinel-1 burst SLCs"
)

// BurstCatalog is the root catalog over a set of stacks.
type BurstCatalog struct {
	Catalog *Catalog
	Stacks  []*Stack
}

// NewBurstCatalog groups items into stacks under a root catalog.
func NewBurstCatalog(items []*Item, version string) (*BurstCatalog, error) {
	if version == "" {
		version = DefaultVersion
	}
	stacks, err := Stacks(items, version)
	if err != nil {
		return nil, err
	}
	return &BurstCatalog{
		Catalog: NewCatalog(CatalogID, "Sentinel-1 bursts", CatalogDescription, version),
		Stacks:  stacks,
	}, nil
}

// Write saves the catalog self-contained under dir: every link is relative
// and no self links are written.
//
//	catalog.json
//	<stack>/collection.json
//	<stack>/<item>/<item>.json
func (c *BurstCatalog) Write(dir string) error {
	root := *c.Catalog
	root.Links = []*Link{{Rel: "root", Href: "./catalog.json", Type: MediaTypeJSON}}

	for _, s := range c.Stacks {
		id := s.Collection.Id
		root.Links = append(root.Links, &Link{Rel: "child", Href: "./" + id + "/collection.json", Type: MediaTypeJSON})

		coll := *s.Collection
		coll.Links = []*Link{
			{Rel: "root", Href: "../catalog.json", Type: MediaTypeJSON},
			{Rel: "parent", Href: "../catalog.json", Type: MediaTypeJSON},
		}
		for _, item := range s.Items {
			coll.Links = append(coll.Links, &Link{Rel: "item", Href: "./" + item.Id + "/" + item.Id + ".json", Type: MediaTypeGeoJSON})

			out := *item
			out.Links = []*Link{
				{Rel: "root", Href: "../../catalog.json", Type: MediaTypeJSON},
				{Rel: "parent", Href: "../collection.json", Type: MediaTypeJSON},
				{Rel: "collection", Href: "../collection.json", Type: MediaTypeJSON},
			}
			if err := writeJSON(filepath.Join(dir, id, item.Id, item.Id+".json"), &out); err != nil {
				return err
			}
		}
		if err := writeJSON(filepath.Join(dir, id, "collection.json"), &coll); err != nil {
			return err
		}
	}
	return writeJSON(filepath.Join(dir, "catalog.json"), &root)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
