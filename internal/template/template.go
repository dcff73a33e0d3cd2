// Package template implements the minutiae-template encoding, the FP2
// stored-print file format, and the bottom-left-origin external rendering
// convention of spec.md §4.8 and §6.
package template

import (
	"encoding/binary"
	"math"
	"sort"

	"fprint/internal/corerr"
	"fprint/internal/minutiae"
)

// MaxFileMinutiae is the per-template entry cap of spec.md §4.8.
const MaxFileMinutiae = 150

// Entry is one matching-ready minutia: (x, y, theta, quality).
type Entry struct {
	X, Y    int
	Theta   int // (-180, 180]
	Quality minutiae.Reliability
}

// Template is the compact, matching-ready encoding of a pruned minutiae
// list (spec.md GLOSSARY "Template").
type Template struct {
	Entries []Entry
}

// Encode builds a Template from list per spec.md §4.8: cap at
// MaxFileMinutiae keeping the highest-reliability entries (ties keep
// earlier list indices), derive theta from the internal direction, and
// sort ascending by (x, y).
func Encode(list *minutiae.List) *Template {
	items := list.Items()
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Reliability > items[order[b]].Reliability
	})
	if len(order) > MaxFileMinutiae {
		order = order[:MaxFileMinutiae]
	}

	entries := make([]Entry, len(order))
	for i, idx := range order {
		m := items[idx]
		entries[i] = Entry{
			X:       m.X,
			Y:       m.Y,
			Theta:   internalTheta(m.Direction),
			Quality: m.Reliability,
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].X != entries[b].X {
			return entries[a].X < entries[b].X
		}
		return entries[a].Y < entries[b].Y
	})
	return &Template{Entries: dedupeByLocation(entries)}
}

// dedupeByLocation drops entries sharing (x,y) with one already kept,
// matching spec.md §8 scenario 5.
func dedupeByLocation(entries []Entry) []Entry {
	out := entries[:0]
	for i, e := range entries {
		if i > 0 && e.X == out[len(out)-1].X && e.Y == out[len(out)-1].Y {
			continue
		}
		out = append(out, e)
	}
	return out
}

// internalTheta derives theta = sround(d * 180/NDIRS); if theta > 180,
// subtract 360, so theta lands in (-180, 180].
func internalTheta(d int) int {
	theta := sround(float64(d) * 180.0 / minutiae.NDIRS)
	if theta > 180 {
		theta -= 360
	}
	return theta
}

func sround(v float64) int {
	return int(math.Floor(v + 0.5))
}

// ExternalEntry is an Entry rendered in the bottom-left-origin,
// (270-...)-mod-360 convention external consumers (the FP2 file format)
// use, per spec.md §4.8/§6.
type ExternalEntry struct {
	X, Y  int
	Theta int // [0, 360)
}

// Render converts t's entries to the external convention for an image of
// the given height.
func Render(t *Template, height int) []ExternalEntry {
	out := make([]ExternalEntry, len(t.Entries))
	for i, e := range t.Entries {
		theta := (270 - e.Theta) % 360
		if theta < 0 {
			theta += 360
		}
		out[i] = ExternalEntry{X: e.X, Y: height - e.Y, Theta: theta}
	}
	return out
}

// StoredPrint is a parsed FP2 (or legacy FP1) file: a header plus a
// sequence of opaque template-payload entries (spec.md §6).
type StoredPrint struct {
	DriverID   uint16
	DeviceType uint32
	DataType   uint8
	Entries    [][]byte
}

const (
	magicFP2 = "FP2"
	magicFP1 = "FP1"
)

// Serialize writes sp in the little-endian FP2 layout: 3-byte magic,
// 2-byte driver id, 4-byte device type, 1-byte data type, then for each
// entry a 4-byte length followed by its payload.
func (sp *StoredPrint) Serialize() []byte {
	size := 3 + 2 + 4 + 1
	for _, e := range sp.Entries {
		size += 4 + len(e)
	}
	buf := make([]byte, size)
	copy(buf[0:3], magicFP2)
	binary.LittleEndian.PutUint16(buf[3:5], sp.DriverID)
	binary.LittleEndian.PutUint32(buf[5:9], sp.DeviceType)
	buf[9] = sp.DataType
	off := 10
	for _, e := range sp.Entries {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(e)))
		off += 4
		copy(buf[off:off+len(e)], e)
		off += len(e)
	}
	return buf
}

// Parse reads a StoredPrint from its FP2 (or legacy FP1, whose entire body
// is treated as one entry) serialization.
func Parse(data []byte) (*StoredPrint, error) {
	if len(data) < 3 {
		return nil, corerr.EINVAL
	}
	magic := string(data[0:3])
	switch magic {
	case magicFP1:
		return legacyFP1(data)
	case magicFP2:
		if len(data) < 10 {
			return nil, corerr.EINVAL
		}
	default:
		return nil, corerr.EIO
	}
	sp := &StoredPrint{
		DriverID:   binary.LittleEndian.Uint16(data[3:5]),
		DeviceType: binary.LittleEndian.Uint32(data[5:9]),
		DataType:   data[9],
	}
	off := 10
	for off < len(data) {
		if off+4 > len(data) {
			return nil, corerr.EIO
		}
		n := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if n < 0 || off+n > len(data) {
			return nil, corerr.EIO
		}
		entry := make([]byte, n)
		copy(entry, data[off:off+n])
		sp.Entries = append(sp.Entries, entry)
		off += n
	}
	return sp, nil
}

// legacyFP1 reads the legacy "FP1" header, treating the entire remaining
// body as a single entry.
func legacyFP1(data []byte) (*StoredPrint, error) {
	if len(data) < 3 {
		return nil, corerr.EINVAL
	}
	body := make([]byte, len(data)-3)
	copy(body, data[3:])
	return &StoredPrint{Entries: [][]byte{body}}, nil
}
