package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/internal/catalog"
	"reldb/internal/value"
)

func usersTable() *catalog.Table {
	return &catalog.Table{
		Name: "users",
		Columns: []*catalog.Column{
			{Name: "id", Kind: value.Integer, PrimaryKey: true, Nullable: false},
			{Name: "name", Kind: value.String, MaxLength: 20, Nullable: true},
			{Name: "age", Kind: value.Integer, Nullable: true},
		},
		PrimaryKey: "id",
	}
}

func TestRecordRoundTrip(t *testing.T) {
	tbl := usersTable()
	row := Row{"id": value.Int(1), "name": value.Str("Alice"), "age": value.Int(30)}
	enc, err := EncodeRecord(tbl, row)
	require.NoError(t, err)
	dec, err := DecodeRecord(tbl, enc)
	require.NoError(t, err)
	assert.True(t, value.Equal(dec["id"], value.Int(1)))
	assert.True(t, value.Equal(dec["name"], value.Str("Alice")))
	assert.True(t, value.Equal(dec["age"], value.Int(30)))
}

func TestRecordRoundTripWithNull(t *testing.T) {
	tbl := usersTable()
	row := Row{"id": value.Int(2), "age": value.NullValue()}
	enc, err := EncodeRecord(tbl, row)
	require.NoError(t, err)
	dec, err := DecodeRecord(tbl, enc)
	require.NoError(t, err)
	assert.True(t, dec["age"].IsNull())
	assert.True(t, dec["name"].IsNull())
}

func TestPageInsertGetDelete(t *testing.T) {
	p := NewPage(1)
	slot, err := p.InsertRecord([]byte("hello"))
	require.NoError(t, err)
	data, ok := p.GetRecord(slot)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	p.DeleteRecord(slot)
	_, ok = p.GetRecord(slot)
	assert.False(t, ok)
}

func TestPageFullReturnsStorageError(t *testing.T) {
	p := NewPage(1)
	big := make([]byte, PageSize)
	_, err := p.InsertRecord(big)
	require.Error(t, err)
}

func TestPageSerializeDeserializeRoundTrip(t *testing.T) {
	p := NewPage(7)
	_, err := p.InsertRecord([]byte("abc"))
	require.NoError(t, err)
	_, err = p.InsertRecord([]byte("defgh"))
	require.NoError(t, err)
	raw := p.Serialize()
	p2, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, 7, p2.ID)
	d0, ok := p2.GetRecord(0)
	require.True(t, ok)
	assert.Equal(t, "abc", string(d0))
}

func TestBufferPoolLRUEviction(t *testing.T) {
	store := map[int]*Page{1: NewPage(1), 2: NewPage(2), 3: NewPage(3)}
	bp := NewBufferPool(2, LRU, func(id int) (*Page, error) { return store[id], nil })
	_, err := bp.Pin(1)
	require.NoError(t, err)
	bp.Unpin(1, false)
	_, err = bp.Pin(2)
	require.NoError(t, err)
	bp.Unpin(2, false)
	// Touch 1 again so 2 becomes the LRU victim.
	_, err = bp.Pin(1)
	require.NoError(t, err)
	bp.Unpin(1, false)
	_, err = bp.Pin(3)
	require.NoError(t, err)
	bp.Unpin(3, false)
	assert.Equal(t, 1, bp.Stats().Evictions)
}

func TestBTreeUniqueRejectsDuplicate(t *testing.T) {
	bt := NewBTree("pk", "users", []string{"id"}, true, 4)
	require.NoError(t, bt.Insert(value.Int(1), RowID{1, 0}))
	err := bt.Insert(value.Int(1), RowID{1, 1})
	require.Error(t, err)
}

func TestBTreeSearchExactAndRange(t *testing.T) {
	bt := NewBTree("idx_age", "users", []string{"age"}, false, 4)
	require.NoError(t, bt.Insert(value.Int(20), RowID{1, 0}))
	require.NoError(t, bt.Insert(value.Int(30), RowID{1, 1}))
	require.NoError(t, bt.Insert(value.Int(25), RowID{1, 2}))
	rows := bt.SearchExact(value.Int(25))
	require.Len(t, rows, 1)
	lo, hi := value.Int(20), value.Int(29)
	rng := bt.SearchRange(&lo, &hi)
	assert.Len(t, rng, 2)
}

func TestTableManagerPrimaryKeyUniqueness(t *testing.T) {
	cat := catalog.New()
	mgr := NewTableManager(cat, 4, LRU)
	require.NoError(t, mgr.CreateTable("users", usersTable().Columns))
	_, err := mgr.Insert("users", Row{"id": value.Int(1), "name": value.Str("Alice")})
	require.NoError(t, err)
	_, err = mgr.Insert("users", Row{"id": value.Int(1), "name": value.Str("Bob")})
	require.Error(t, err)
}

func TestTableManagerNotNullViolation(t *testing.T) {
	cat := catalog.New()
	mgr := NewTableManager(cat, 4, LRU)
	require.NoError(t, mgr.CreateTable("users", usersTable().Columns))
	_, err := mgr.Insert("users", Row{"name": value.Str("NoID")})
	require.Error(t, err)
}

func TestTableManagerIndexEqualityLookup(t *testing.T) {
	cat := catalog.New()
	mgr := NewTableManager(cat, 4, LRU)
	require.NoError(t, mgr.CreateTable("users", usersTable().Columns))
	_, err := mgr.Insert("users", Row{"id": value.Int(1), "name": value.Str("Alice"), "age": value.Int(30)})
	require.NoError(t, err)
	_, err = mgr.Insert("users", Row{"id": value.Int(2), "name": value.Str("Bob"), "age": value.Int(25)})
	require.NoError(t, err)
	require.NoError(t, mgr.CreateIndex("idx_name", "users", []string{"name"}, true))
	bt, ok := mgr.Index("idx_name")
	require.True(t, ok)
	rids := bt.SearchExact(value.Str("Bob"))
	require.Len(t, rids, 1)
	row, err := mgr.Get("users", rids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), row["id"].Int())
}

func TestTableManagerUpdateAndDelete(t *testing.T) {
	cat := catalog.New()
	mgr := NewTableManager(cat, 4, LRU)
	require.NoError(t, mgr.CreateTable("users", usersTable().Columns))
	rid, err := mgr.Insert("users", Row{"id": value.Int(1), "name": value.Str("Alice"), "age": value.Int(30)})
	require.NoError(t, err)
	require.NoError(t, mgr.Update("users", rid, Row{"id": value.Int(1), "name": value.Str("Alice"), "age": value.Int(31)}))
	row, err := mgr.Get("users", rid)
	require.NoError(t, err)
	assert.Equal(t, int64(31), row["age"].Int())
	require.NoError(t, mgr.Delete("users", rid))
	_, err = mgr.Get("users", rid)
	require.Error(t, err)
}

func TestFacadePersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	defer os.RemoveAll(dir)

	f, err := NewFacade(Config{BufferPoolCapacity: 4, Policy: LRU, DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, f.CreateTable("users", usersTable().Columns))
	_, err = f.Insert("users", Row{"id": value.Int(1), "name": value.Str("Alice"), "age": value.Int(30)})
	require.NoError(t, err)
	require.NoError(t, f.CreateIndex("idx_name", "users", []string{"name"}, true))
	require.NoError(t, f.FlushAll())

	f2, err := NewFacade(Config{BufferPoolCapacity: 4, Policy: LRU, DataDir: dir})
	require.NoError(t, err)
	_, rows, err := f2.Select("users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"].Text())

	_, idxRows, err := f2.SelectByIndex("idx_name", value.Str("Alice"))
	require.NoError(t, err)
	require.Len(t, idxRows, 1)
}

func TestBufferPoolTracksPageAccessThroughTableManager(t *testing.T) {
	dir := t.TempDir()

	f, err := NewFacade(Config{BufferPoolCapacity: 4, Policy: LRU, DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, f.CreateTable("users", usersTable().Columns))
	rid, err := f.Insert("users", Row{"id": value.Int(1), "name": value.Str("Alice"), "age": value.Int(30)})
	require.NoError(t, err)
	require.NoError(t, f.FlushAll())

	// A freshly reopened facade's pool starts empty: the page above must
	// not already be resident until something pins it.
	f2, err := NewFacade(Config{BufferPoolCapacity: 4, Policy: LRU, DataDir: dir})
	require.NoError(t, err)
	before := f2.mgr.PoolStats("users")
	assert.Equal(t, BufferPoolStats{}, before)

	_, err = f2.Get("users", rid)
	require.NoError(t, err)
	afterFirst := f2.mgr.PoolStats("users")
	assert.Equal(t, 1, afterFirst.Misses, "first access after reopen must load the page on demand")
	assert.Equal(t, 0, afterFirst.Hits)

	_, err = f2.Get("users", rid)
	require.NoError(t, err)
	afterSecond := f2.mgr.PoolStats("users")
	assert.Equal(t, 1, afterSecond.Hits, "second access must hit the now-resident page instead of reloading it")
}

func TestSelectWithPerformanceReportsIndexUsage(t *testing.T) {
	cat := catalog.New()
	f := &Facade{Catalog: cat, mgr: NewTableManager(cat, 4, LRU), dataDir: ""}
	require.NoError(t, f.CreateTable("users", usersTable().Columns))
	_, err := f.Insert("users", Row{"id": value.Int(1), "name": value.Str("Alice"), "age": value.Int(30)})
	require.NoError(t, err)
	require.NoError(t, f.CreateIndex("idx_age", "users", []string{"age"}, false))
	res, err := f.SelectWithPerformance("users", "age", value.Int(30))
	require.NoError(t, err)
	assert.True(t, res.UsedIndex)
	require.Len(t, res.Rows, 1)
}
