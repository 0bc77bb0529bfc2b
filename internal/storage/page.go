package storage

import (
	"encoding/binary"

	"reldb/internal/errs"
)

// PageSize is the default fixed page size in bytes (spec.md §4.1).
const PageSize = 4096

const pageHeaderSize = 8 // slotCount(2) + freeStart(2) + pageID(4)

// slotEntry is a directory entry: offset+length of one record within
// the page's data area, or a tombstone (length 0) after deletion.
type slotEntry struct {
	offset uint16
	length uint16
}

const slotEntrySize = 4

// Page is a fixed-size slotted page: a header, a growing slot
// directory from the front, and record bytes packed from the back,
// the classic layout original_source's storage/page.py describes.
type Page struct {
	ID    int
	data  []byte
	slots []slotEntry
	free  int // byte offset where the next record would be written, growing downward
}

// NewPage allocates a fresh, empty page of PageSize bytes.
func NewPage(id int) *Page {
	return &Page{ID: id, data: make([]byte, PageSize), free: PageSize}
}

// FreeSpace returns the bytes still usable for new records, after
// accounting for the slot directory that will have to grow.
func (p *Page) FreeSpace() int {
	used := pageHeaderSize + len(p.slots)*slotEntrySize
	return p.free - used
}

// InsertRecord appends a record's bytes to the page and returns its
// slot index, or errs.StorageError{Kind: PageFull} if there isn't room
// for the record plus one more slot directory entry.
func (p *Page) InsertRecord(rec []byte) (int, error) {
	need := len(rec) + slotEntrySize
	if p.FreeSpace() < need {
		return 0, errs.NewStorage(errs.PageFull, "page %d has no room for a %d-byte record", p.ID, len(rec))
	}
	p.free -= len(rec)
	copy(p.data[p.free:p.free+len(rec)], rec)
	p.slots = append(p.slots, slotEntry{offset: uint16(p.free), length: uint16(len(rec))})
	return len(p.slots) - 1, nil
}

// GetRecord returns the raw bytes at slot, or ok=false if the slot is
// out of range or has been deleted (tombstoned).
func (p *Page) GetRecord(slot int) ([]byte, bool) {
	if slot < 0 || slot >= len(p.slots) {
		return nil, false
	}
	e := p.slots[slot]
	if e.length == 0 {
		return nil, false
	}
	return p.data[e.offset : e.offset+e.length], true
}

// DeleteRecord tombstones a slot; the bytes remain in the page and are
// not reclaimed, but the slot no longer resolves.
func (p *Page) DeleteRecord(slot int) {
	if slot < 0 || slot >= len(p.slots) {
		return
	}
	p.slots[slot] = slotEntry{}
}

// UpdateRecord replaces a slot's bytes in place when the new encoding is
// no larger, otherwise tombstones the old slot and appends a new one,
// returning the (possibly new) slot index.
func (p *Page) UpdateRecord(slot int, rec []byte) (int, error) {
	if slot >= 0 && slot < len(p.slots) {
		e := p.slots[slot]
		if e.length != 0 && int(e.length) >= len(rec) {
			copy(p.data[e.offset:e.offset+uint16(len(rec))], rec)
			p.slots[slot] = slotEntry{offset: e.offset, length: uint16(len(rec))}
			return slot, nil
		}
	}
	p.DeleteRecord(slot)
	return p.InsertRecord(rec)
}

// RecordEntry pairs a live slot index with its raw bytes.
type RecordEntry struct {
	Slot int
	Data []byte
}

// Records returns every live (non-tombstoned) slot's bytes in slot
// order. A plain map would scramble that order on every range, which
// matters here: row-insertion order is the only order a bare SCAN (no
// ORDER BY) promises, and ties in ORDER BY fall back to it too.
func (p *Page) Records() []RecordEntry {
	out := make([]RecordEntry, 0, len(p.slots))
	for i, e := range p.slots {
		if e.length == 0 {
			continue
		}
		out = append(out, RecordEntry{Slot: i, Data: p.data[e.offset : e.offset+e.length]})
	}
	return out
}

// Serialize flattens the page to its on-disk byte form: header, slot
// directory, then the raw data area, suitable for writing to a
// pages/<table>.pages file.
func (p *Page) Serialize() []byte {
	out := make([]byte, PageSize)
	binary.BigEndian.PutUint16(out[0:2], uint16(len(p.slots)))
	binary.BigEndian.PutUint16(out[2:4], uint16(p.free))
	binary.BigEndian.PutUint32(out[4:8], uint32(p.ID))
	off := pageHeaderSize
	for _, e := range p.slots {
		binary.BigEndian.PutUint16(out[off:off+2], e.offset)
		binary.BigEndian.PutUint16(out[off+2:off+4], e.length)
		off += slotEntrySize
	}
	copy(out[p.free:], p.data[p.free:])
	return out
}

// pageIDFromRaw reads a page's ID out of its serialized header without
// decoding the rest of it, so a table's on-disk page file can be
// indexed by ID while each page's body stays undecoded until the
// buffer pool actually pins it.
func pageIDFromRaw(raw []byte) int {
	return int(binary.BigEndian.Uint32(raw[4:8]))
}

// Deserialize rebuilds a Page from its on-disk byte form.
func Deserialize(raw []byte) (*Page, error) {
	if len(raw) < pageHeaderSize {
		return nil, errs.NewStorage(errs.CatalogCorrupt, "page shorter than header (%d bytes)", len(raw))
	}
	slotCount := int(binary.BigEndian.Uint16(raw[0:2]))
	free := int(binary.BigEndian.Uint16(raw[2:4]))
	id := int(binary.BigEndian.Uint32(raw[4:8]))
	p := &Page{ID: id, data: make([]byte, PageSize), free: free}
	copy(p.data, raw)
	off := pageHeaderSize
	for i := 0; i < slotCount; i++ {
		if off+slotEntrySize > len(raw) {
			return nil, errs.NewStorage(errs.CatalogCorrupt, "page %d slot directory truncated", id)
		}
		e := slotEntry{
			offset: binary.BigEndian.Uint16(raw[off : off+2]),
			length: binary.BigEndian.Uint16(raw[off+2 : off+4]),
		}
		p.slots = append(p.slots, e)
		off += slotEntrySize
	}
	return p, nil
}
