package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"reldb/internal/catalog"
	"reldb/internal/errs"
)

// persistedCatalog is the TOML document shape written to
// <data-dir>/catalog.toml, grounded on the teacher's
// internal/parser/toml/parser.go decode-into-struct pattern (BurntSushi
// struct-tag decoding rather than a hand-rolled TOML writer).
type persistedCatalog struct {
	Tables  []*catalog.Table  `toml:"table"`
	Indexes []*catalog.Index  `toml:"index"`
}

// SaveCatalog writes the catalog (table/column/index metadata, not row
// data) to <dataDir>/catalog.toml.
func SaveCatalog(cat *catalog.Catalog, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return errs.NewStorage(errs.CatalogCorrupt, "creating data dir %q: %v", dataDir, err)
	}
	doc := persistedCatalog{}
	for _, name := range cat.ListTables() {
		t, _ := cat.GetTable(name)
		for _, c := range t.Columns {
			c.SyncKindName()
		}
		doc.Tables = append(doc.Tables, t)
	}
	for _, idx := range cat.Indexes {
		doc.Indexes = append(doc.Indexes, idx)
	}
	f, err := os.Create(filepath.Join(dataDir, "catalog.toml"))
	if err != nil {
		return errs.NewStorage(errs.CatalogCorrupt, "creating catalog.toml: %v", err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(doc); err != nil {
		return errs.NewStorage(errs.CatalogCorrupt, "encoding catalog.toml: %v", err)
	}
	return nil
}

// LoadCatalog reads <dataDir>/catalog.toml back into a *catalog.Catalog.
// A missing file is not an error: it means a fresh, empty data
// directory.
func LoadCatalog(dataDir string) (*catalog.Catalog, error) {
	path := filepath.Join(dataDir, "catalog.toml")
	cat := catalog.New()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cat, nil
	}
	var doc persistedCatalog
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, errs.NewStorage(errs.CatalogCorrupt, "decoding catalog.toml: %v", err)
	}
	for _, t := range doc.Tables {
		for _, c := range t.Columns {
			c.Kind = catalog.KindFromName(c.KindName)
		}
		cat.PutTable(t)
	}
	for _, idx := range doc.Indexes {
		cat.PutIndex(idx)
	}
	if err := cat.Closure(); err != nil {
		return nil, errs.NewStorage(errs.CatalogCorrupt, "%v", err)
	}
	return cat, nil
}

// SavePages flushes each table's dirty resident pages to its backing
// byte store and writes every page out to <dataDir>/pages/<table>.pages,
// one fixed-size PageSize slab per page, in PageList order. Pages that
// were never pinned this run are written straight from their on-disk
// bytes, never decoded.
func SavePages(m *TableManager, cat *catalog.Catalog, dataDir string) error {
	pagesDir := filepath.Join(dataDir, "pages")
	if err := os.MkdirAll(pagesDir, 0o755); err != nil {
		return errs.NewStorage(errs.CatalogCorrupt, "creating pages dir: %v", err)
	}
	for _, name := range cat.ListTables() {
		t, _ := cat.GetTable(name)
		path := filepath.Join(pagesDir, fmt.Sprintf("%s.pages", name))
		f, err := os.Create(path)
		if err != nil {
			return errs.NewStorage(errs.CatalogCorrupt, "creating %s: %v", path, err)
		}
		raw, err := m.RawPages(name)
		if err != nil {
			f.Close()
			return err
		}
		for _, pageID := range t.PageList {
			b, ok := raw[pageID]
			if !ok {
				continue
			}
			if _, err := f.Write(b); err != nil {
				f.Close()
				return errs.NewStorage(errs.CatalogCorrupt, "writing page %d of %s: %v", pageID, name, err)
			}
		}
		f.Close()
	}
	return nil
}

// LoadPages reads each table's <dataDir>/pages/<table>.pages file back
// as undecoded byte slabs (spec.md's "on startup the buffer pool is
// empty and pages load on demand": nothing here calls Deserialize) and
// rebuilds its indexes, which does require reading every page once
// since no index survives a restart on its own (see RebuildIndexes).
func LoadPages(m *TableManager, cat *catalog.Catalog, dataDir string) error {
	pagesDir := filepath.Join(dataDir, "pages")
	for _, name := range cat.ListTables() {
		path := filepath.Join(pagesDir, fmt.Sprintf("%s.pages", name))
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			m.InstallRawPages(name, map[int][]byte{})
			continue
		}
		if err != nil {
			return errs.NewStorage(errs.CatalogCorrupt, "reading %s: %v", path, err)
		}
		pages := map[int][]byte{}
		for off := 0; off+PageSize <= len(raw); off += PageSize {
			chunk := raw[off : off+PageSize]
			pages[pageIDFromRaw(chunk)] = chunk
		}
		m.InstallRawPages(name, pages)
	}
	return m.RebuildIndexes()
}
