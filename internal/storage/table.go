package storage

import (
	"strings"

	"reldb/internal/catalog"
	"reldb/internal/errs"
	"reldb/internal/value"
)

// tableFile is a table's on-disk page bytes, keyed by page ID, undecoded
// until the buffer pool actually pins one. This is the backing store the
// pool's PageLoader reads from on a miss and its onEvict callback writes
// back to; catalog_io.go persists it to <data-dir>/pages/<table>.pages.
type tableFile struct {
	raw map[int][]byte
}

// TableManager owns C3: DDL primitives over a catalog, and the
// insert/scan/update/delete row operations, backed by a BufferPool per
// table and constraint enforcement (PK uniqueness, NOT NULL, UNIQUE),
// grounded on original_source/src/storage/table_manager.py's operation
// set and the teacher's typed-error-per-violation idiom
// (errs.ConstraintError here in place of internal/core/validation.go's
// ValidationError).
type TableManager struct {
	cat     *catalog.Catalog
	files   map[string]*tableFile
	pools   map[string]*BufferPool
	indexes map[string]*BTree // index name -> btree
	policy  ReplacementPolicy
	poolCap int
}

func NewTableManager(cat *catalog.Catalog, poolCapacityPerTable int, policy ReplacementPolicy) *TableManager {
	return &TableManager{
		cat:     cat,
		files:   map[string]*tableFile{},
		pools:   map[string]*BufferPool{},
		indexes: map[string]*BTree{},
		policy:  policy,
		poolCap: poolCapacityPerTable,
	}
}

func (m *TableManager) fileFor(table string) *tableFile {
	key := strings.ToLower(table)
	f, ok := m.files[key]
	if !ok {
		f = &tableFile{raw: map[int][]byte{}}
		m.files[key] = f
	}
	return f
}

// poolFor returns (creating if needed) the per-table BufferPool that
// every page access in this file goes through: Pin decodes a page from
// f.raw on a miss (spec.md's "on startup the buffer pool is empty and
// pages load on demand"), and the onEvict callback it installs writes a
// dirty page's bytes back to f.raw on eviction or FlushTable.
func (m *TableManager) poolFor(table string) *BufferPool {
	key := strings.ToLower(table)
	bp, ok := m.pools[key]
	if ok {
		return bp
	}
	f := m.fileFor(table)
	bp = NewBufferPool(m.poolCap, m.policy, func(id int) (*Page, error) {
		raw, ok := f.raw[id]
		if !ok {
			return nil, errs.NewStorage(errs.CatalogCorrupt, "page %d not found for table %q", id, table)
		}
		return Deserialize(raw)
	})
	bp.SetOnEvict(func(p *Page) error {
		f.raw[p.ID] = p.Serialize()
		return nil
	})
	m.pools[key] = bp
	return bp
}

// CreateTable registers a new table in the catalog and allocates its
// first page.
func (m *TableManager) CreateTable(name string, columns []*catalog.Column) error {
	if _, exists := m.cat.GetTable(name); exists {
		return errs.NewStorage(errs.CatalogCorrupt, "table %q already exists", name)
	}
	pk := ""
	for _, c := range columns {
		c.SyncKindName()
		if c.PrimaryKey {
			pk = c.Name
		}
	}
	t := &catalog.Table{Name: name, Columns: columns, PrimaryKey: pk}
	m.cat.PutTable(t)
	first := NewPage(1)
	pool := m.poolFor(name)
	if err := pool.PutNew(first); err != nil {
		return err
	}
	pool.Unpin(1, true)
	t.PageList = []int{1}
	if pk != "" {
		m.indexes[pkIndexName(name)] = NewBTree(pkIndexName(name), name, []string{pk}, true, 64)
	}
	return nil
}

func pkIndexName(table string) string { return "__pk_" + strings.ToLower(table) }

func (m *TableManager) DropTable(name string) error {
	if _, exists := m.cat.GetTable(name); !exists {
		return errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", name)
	}
	m.cat.DropTable(name)
	delete(m.files, strings.ToLower(name))
	delete(m.pools, strings.ToLower(name))
	for k, idx := range m.indexes {
		if strings.EqualFold(idx.Table, name) {
			delete(m.indexes, k)
		}
	}
	return nil
}

func (m *TableManager) AddColumn(table string, col *catalog.Column) error {
	t, exists := m.cat.GetTable(table)
	if !exists {
		return errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", table)
	}
	col.SyncKindName()
	t.Columns = append(t.Columns, col)
	pool := m.poolFor(table)
	for _, pageID := range t.PageList {
		p, err := pool.Pin(pageID)
		if err != nil {
			return err
		}
		recs := p.Records()
		for _, rec := range recs {
			row, err := decodeWithout(t, rec.Data, col.Name)
			if err != nil {
				pool.Unpin(pageID, len(recs) > 0)
				return err
			}
			if col.HasDefault {
				row[col.Name] = col.Default2Value()
			} else {
				row[col.Name] = value.NullValue()
			}
			enc, err := EncodeRecord(t, row)
			if err != nil {
				pool.Unpin(pageID, len(recs) > 0)
				return err
			}
			if _, err := p.UpdateRecord(rec.Slot, enc); err != nil {
				pool.Unpin(pageID, len(recs) > 0)
				return err
			}
		}
		pool.Unpin(pageID, len(recs) > 0)
	}
	return nil
}

// decodeWithout decodes a record using the table's column list minus
// the newly-added column, since existing page bytes were encoded
// before it existed.
func decodeWithout(t *catalog.Table, data []byte, newCol string) (Row, error) {
	old := &catalog.Table{Name: t.Name}
	for _, c := range t.Columns {
		if c.Name != newCol {
			old.Columns = append(old.Columns, c)
		}
	}
	return DecodeRecord(old, data)
}

func (m *TableManager) CreateIndex(name, table string, columns []string, unique bool) error {
	t, exists := m.cat.GetTable(table)
	if !exists {
		return errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", table)
	}
	bt := NewBTree(name, table, columns, unique, 64)
	pool := m.poolFor(table)
	for _, pageID := range t.PageList {
		p, err := pool.Pin(pageID)
		if err != nil {
			return err
		}
		for _, rec := range p.Records() {
			row, err := DecodeRecord(t, rec.Data)
			if err != nil {
				pool.Unpin(pageID, false)
				return err
			}
			key := compositeKey(row, columns)
			if err := bt.Insert(key, RowID{PageID: pageID, Slot: rec.Slot}); err != nil {
				pool.Unpin(pageID, false)
				return errs.NewConstraint(errs.UniqueViolation, table, strings.Join(columns, ","), "existing data violates new unique index %q", name)
			}
		}
		pool.Unpin(pageID, false)
	}
	m.indexes[strings.ToLower(name)] = bt
	m.cat.PutIndex(&catalog.Index{Name: name, Table: table, Columns: columns, Unique: unique})
	return nil
}

func (m *TableManager) DropIndex(name string) {
	delete(m.indexes, strings.ToLower(name))
	m.cat.Indexes[strings.ToLower(name)] = nil
	delete(m.cat.Indexes, strings.ToLower(name))
}

func (m *TableManager) Index(name string) (*BTree, bool) {
	bt, ok := m.indexes[strings.ToLower(name)]
	return bt, ok
}

// compositeKey builds a single comparable value.Value out of possibly
// several column values by joining their text forms; sufficient for
// equality and range comparisons since all columns in a composite key
// sort lexicographically within this engine.
func compositeKey(row Row, columns []string) value.Value {
	if len(columns) == 1 {
		return row[columns[0]]
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = row[c].String()
	}
	return value.Str(strings.Join(parts, "\x1f"))
}

// Insert validates constraints (NOT NULL, PRIMARY KEY uniqueness,
// UNIQUE) and appends a row to the table's last page, spilling to a new
// page when full, then maintains every index registered on the table.
func (m *TableManager) Insert(table string, row Row) (RowID, error) {
	t, exists := m.cat.GetTable(table)
	if !exists {
		return RowID{}, errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", table)
	}
	for _, c := range t.Columns {
		v, ok := row[c.Name]
		if !ok || v.IsNull() {
			if !c.Nullable && !c.HasDefault {
				return RowID{}, errs.NewConstraint(errs.NotNullViolation, table, c.Name, "column %q cannot be null", c.Name)
			}
			if !ok && c.HasDefault {
				row[c.Name] = c.Default2Value()
			}
		}
		if c.Kind == value.String && c.MaxLength > 0 {
			if s, ok := row[c.Name]; ok && len(s.Text()) > c.MaxLength {
				return RowID{}, errs.NewConstraint(errs.DataTooLong, table, c.Name, "value for column %q exceeds max length %d", c.Name, c.MaxLength)
			}
		}
	}
	if err := m.checkUniqueConstraints(t, row, nil); err != nil {
		return RowID{}, err
	}

	enc, err := EncodeRecord(t, row)
	if err != nil {
		return RowID{}, err
	}
	pool := m.poolFor(table)
	pageID := t.PageList[len(t.PageList)-1]
	page, err := pool.Pin(pageID)
	if err != nil {
		return RowID{}, err
	}
	slot, err := page.InsertRecord(enc)
	if err != nil {
		pool.Unpin(pageID, false)
		pageID = pageID + 1
		page = NewPage(pageID)
		if err := pool.PutNew(page); err != nil {
			return RowID{}, err
		}
		t.PageList = append(t.PageList, pageID)
		slot, err = page.InsertRecord(enc)
		if err != nil {
			pool.Unpin(pageID, false)
			return RowID{}, err
		}
	}
	pool.Unpin(pageID, true)
	rid := RowID{PageID: pageID, Slot: slot}
	t.RecordCount++
	m.indexInsert(table, row, rid)
	return rid, nil
}

func (m *TableManager) checkUniqueConstraints(t *catalog.Table, row Row, skip *RowID) error {
	for _, c := range t.Columns {
		if !c.Unique && !c.PrimaryKey {
			continue
		}
		v, ok := row[c.Name]
		if !ok || v.IsNull() {
			continue
		}
		rids, err := m.scanRowIDs(t.Name)
		if err != nil {
			return err
		}
		for rid := range rids {
			if skip != nil && rid == *skip {
				continue
			}
			existing, err := m.Get(t.Name, rid)
			if err != nil {
				continue
			}
			if value.Equal(existing[c.Name], v) {
				kind := errs.UniqueViolation
				if c.PrimaryKey {
					kind = errs.PrimaryKeyViolation
				}
				return errs.NewConstraint(kind, t.Name, c.Name, "value %v already exists for column %q", v, c.Name)
			}
		}
	}
	return nil
}

func (m *TableManager) indexInsert(table string, row Row, rid RowID) {
	for _, idx := range m.indexes {
		if !strings.EqualFold(idx.Table, table) {
			continue
		}
		key := compositeKey(row, idx.Columns)
		_ = idx.Insert(key, rid)
	}
}

func (m *TableManager) indexDelete(table string, row Row, rid RowID) {
	for _, idx := range m.indexes {
		if !strings.EqualFold(idx.Table, table) {
			continue
		}
		key := compositeKey(row, idx.Columns)
		idx.Delete(key, rid)
	}
}

// Get decodes a single row by RowID, pinning its page through the
// buffer pool (a cache hit if the page is already resident, a decode
// from f.raw otherwise) and releasing the pin before returning.
func (m *TableManager) Get(table string, rid RowID) (Row, error) {
	t, exists := m.cat.GetTable(table)
	if !exists {
		return nil, errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", table)
	}
	pool := m.poolFor(table)
	p, err := pool.Pin(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer pool.Unpin(rid.PageID, false)
	raw, ok := p.GetRecord(rid.Slot)
	if !ok {
		return nil, errs.NewStorage(errs.CatalogCorrupt, "slot %d deleted or out of range", rid.Slot)
	}
	return DecodeRecord(t, raw)
}

// scanRowIDs yields every live RowID in a table across all its pages,
// in page-then-slot order, pinning each page through the buffer pool in
// turn.
func (m *TableManager) scanRowIDs(table string) (map[RowID]struct{}, error) {
	t, exists := m.cat.GetTable(table)
	if !exists {
		return nil, errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", table)
	}
	pool := m.poolFor(table)
	out := map[RowID]struct{}{}
	for _, pageID := range t.PageList {
		p, err := pool.Pin(pageID)
		if err != nil {
			return nil, err
		}
		for _, rec := range p.Records() {
			out[RowID{PageID: pageID, Slot: rec.Slot}] = struct{}{}
		}
		pool.Unpin(pageID, false)
	}
	return out, nil
}

// Scan returns every live row in the table, RowID alongside its decoded
// value, for the VM's SCAN instruction. Each page is pinned and
// unpinned through the buffer pool in PageList order.
func (m *TableManager) Scan(table string) ([]RowID, []Row, error) {
	t, exists := m.cat.GetTable(table)
	if !exists {
		return nil, nil, errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", table)
	}
	pool := m.poolFor(table)
	var rids []RowID
	var rows []Row
	for _, pageID := range t.PageList {
		p, err := pool.Pin(pageID)
		if err != nil {
			return nil, nil, err
		}
		for _, rec := range p.Records() {
			row, err := DecodeRecord(t, rec.Data)
			if err != nil {
				pool.Unpin(pageID, false)
				return nil, nil, err
			}
			rids = append(rids, RowID{PageID: pageID, Slot: rec.Slot})
			rows = append(rows, row)
		}
		pool.Unpin(pageID, false)
	}
	return rids, rows, nil
}

// Update overwrites the given row's bytes (in place when the new
// encoding is no longer than the old one, otherwise in a new slot of
// the same page) and keeps every index current. PRIMARY KEY and UNIQUE
// are re-checked against the new values; NOT NULL and length limits
// are not.
func (m *TableManager) Update(table string, rid RowID, newRow Row) error {
	t, exists := m.cat.GetTable(table)
	if !exists {
		return errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", table)
	}
	old, err := m.Get(table, rid)
	if err != nil {
		return err
	}
	if err := m.checkUniqueConstraints(t, newRow, &rid); err != nil {
		return err
	}
	enc, err := EncodeRecord(t, newRow)
	if err != nil {
		return err
	}
	pool := m.poolFor(table)
	p, err := pool.Pin(rid.PageID)
	if err != nil {
		return err
	}
	newSlot, err := p.UpdateRecord(rid.Slot, enc)
	if err != nil {
		pool.Unpin(rid.PageID, false)
		return err
	}
	pool.Unpin(rid.PageID, true)
	m.indexDelete(table, old, rid)
	m.indexInsert(table, newRow, RowID{PageID: rid.PageID, Slot: newSlot})
	return nil
}

// Delete tombstones a row and removes it from every index.
func (m *TableManager) Delete(table string, rid RowID) error {
	row, err := m.Get(table, rid)
	if err != nil {
		return err
	}
	pool := m.poolFor(table)
	p, err := pool.Pin(rid.PageID)
	if err != nil {
		return err
	}
	p.DeleteRecord(rid.Slot)
	pool.Unpin(rid.PageID, true)
	m.indexDelete(table, row, rid)
	if t, exists := m.cat.GetTable(table); exists {
		t.RecordCount--
	}
	return nil
}

// FlushTable writes every dirty resident page of table back to its
// f.raw backing store via the pool's onEvict callback, without evicting
// it from the pool.
func (m *TableManager) FlushTable(table string) error {
	return m.poolFor(table).FlushAll()
}

// PoolStats reports the buffer pool hit/miss/eviction counters for
// table, for select_with_performance's reporting.
func (m *TableManager) PoolStats(table string) BufferPoolStats {
	return m.poolFor(table).Stats()
}

// RawPages flushes table's pool and returns its current on-disk page
// bytes keyed by page ID, for catalog_io.go's SavePages and
// Facade.Snapshot — a byte copy, not a *Page decode, since neither
// caller needs to read a page's contents.
func (m *TableManager) RawPages(table string) (map[int][]byte, error) {
	if err := m.FlushTable(table); err != nil {
		return nil, err
	}
	return m.fileFor(table).raw, nil
}

// InstallRawPages installs a table's on-disk page bytes as the buffer
// pool's backing store (used by catalog_io.LoadPages at startup and by
// Facade.Restore after a ROLLBACK) without decoding any of them; a page
// is only deserialized once the pool actually pins it. Any existing
// pool for the table is dropped so its resident frames don't shadow the
// newly installed bytes.
func (m *TableManager) InstallRawPages(table string, raw map[int][]byte) {
	key := strings.ToLower(table)
	m.files[key] = &tableFile{raw: raw}
	delete(m.pools, key)
}

// RebuildIndexes re-populates every catalog-registered index from the
// current page contents, used after loading a persisted catalog+pages
// since indexes themselves are not persisted (spec.md's Open Question
// on index persistence, resolved in SPEC_FULL.md: rebuild on load).
func (m *TableManager) RebuildIndexes() error {
	for name, idx := range m.cat.Indexes {
		t, exists := m.cat.GetTable(idx.Table)
		if !exists {
			continue
		}
		bt := NewBTree(idx.Name, idx.Table, idx.Columns, idx.Unique, 64)
		pool := m.poolFor(idx.Table)
		for _, pageID := range t.PageList {
			p, err := pool.Pin(pageID)
			if err != nil {
				return err
			}
			for _, rec := range p.Records() {
				row, err := DecodeRecord(t, rec.Data)
				if err != nil {
					pool.Unpin(pageID, false)
					return err
				}
				key := compositeKey(row, idx.Columns)
				_ = bt.Insert(key, RowID{PageID: pageID, Slot: rec.Slot})
			}
			pool.Unpin(pageID, false)
		}
		m.indexes[name] = bt
	}
	return nil
}
