// Package storage implements C1-C5 (spec.md §4.1-4.5): the page-oriented
// page/buffer layer, the table manager, the B+tree index, and the
// storage facade that unifies them. Grounded on original_source's
// storage/* modules for semantics (no Go teacher file exists for this
// subsystem -- original_source/_INDEX.md's retrieval never pulled a
// storage-layer source file for this spec, confirmed by a repo-wide
// grep for Page/Buffer/BTree class names turning up nothing outside
// the Python sources already cited), and on the teacher's struct/error
// idiom (typed errs.StorageError, not bare fmt.Errorf) for everything
// Go-specific: receiver-method APIs, explicit byte encoding instead of
// reflection-based (de)serialization, and no use of unsafe.
package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"reldb/internal/catalog"
	"reldb/internal/errs"
	"reldb/internal/value"
)

// RowID identifies a record's physical location: which page, which slot.
type RowID struct {
	PageID int
	Slot   int
}

func (r RowID) String() string { return fmt.Sprintf("%d:%d", r.PageID, r.Slot) }

// Row is a decoded record: column name -> value. As a map it carries no
// column order; callers take the order from the table's Columns.
type Row map[string]value.Value

// EncodeRecord serializes a row to bytes in table column order using a
// simple tag+length+payload scheme per value (spec.md §4.1's "record
// codec with round-trip property"): one byte tag (0=null,1=int,
// 2=float,3=string,4=bool), followed by the fixed or length-prefixed
// payload.
func EncodeRecord(t *catalog.Table, row Row) ([]byte, error) {
	buf := make([]byte, 0, 64)
	for _, col := range t.Columns {
		v, ok := row[col.Name]
		if !ok {
			v = value.NullValue()
		}
		if v.IsNull() {
			buf = append(buf, 0)
			continue
		}
		switch col.Kind {
		case value.Integer:
			buf = append(buf, 1)
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(v.Int()))
			buf = append(buf, b[:]...)
		case value.Float:
			buf = append(buf, 2)
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float()))
			buf = append(buf, b[:]...)
		case value.String:
			buf = append(buf, 3)
			s := v.Text()
			var lb [4]byte
			binary.BigEndian.PutUint32(lb[:], uint32(len(s)))
			buf = append(buf, lb[:]...)
			buf = append(buf, s...)
		case value.Boolean:
			buf = append(buf, 4)
			if v.Bool() {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		default:
			return nil, errs.NewStorage(errs.CatalogCorrupt, "column %q has unknown kind", col.Name)
		}
	}
	return buf, nil
}

// DecodeRecord is EncodeRecord's inverse.
func DecodeRecord(t *catalog.Table, data []byte) (Row, error) {
	row := Row{}
	pos := 0
	for _, col := range t.Columns {
		if pos >= len(data) {
			return nil, errs.NewStorage(errs.CatalogCorrupt, "record truncated at column %q", col.Name)
		}
		tag := data[pos]
		pos++
		switch tag {
		case 0:
			row[col.Name] = value.NullValue()
		case 1:
			if pos+8 > len(data) {
				return nil, errs.NewStorage(errs.CatalogCorrupt, "record truncated reading int column %q", col.Name)
			}
			row[col.Name] = value.Int(int64(binary.BigEndian.Uint64(data[pos : pos+8])))
			pos += 8
		case 2:
			if pos+8 > len(data) {
				return nil, errs.NewStorage(errs.CatalogCorrupt, "record truncated reading float column %q", col.Name)
			}
			row[col.Name] = value.Flt(math.Float64frombits(binary.BigEndian.Uint64(data[pos : pos+8])))
			pos += 8
		case 3:
			if pos+4 > len(data) {
				return nil, errs.NewStorage(errs.CatalogCorrupt, "record truncated reading string length for column %q", col.Name)
			}
			n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
			pos += 4
			if pos+n > len(data) {
				return nil, errs.NewStorage(errs.CatalogCorrupt, "record truncated reading string column %q", col.Name)
			}
			row[col.Name] = value.Str(string(data[pos : pos+n]))
			pos += n
		case 4:
			if pos >= len(data) {
				return nil, errs.NewStorage(errs.CatalogCorrupt, "record truncated reading bool column %q", col.Name)
			}
			row[col.Name] = value.Bool(data[pos] != 0)
			pos++
		default:
			return nil, errs.NewStorage(errs.CatalogCorrupt, "unknown record tag %d for column %q", tag, col.Name)
		}
	}
	return row, nil
}
