package fat32

import (
	"encoding/binary"
	"strings"

	"github.com/antpln/continuumos/kernel/kerr"
)

// dirEntrySize is the on-disk size of fat32_dir_entry_t (spec.md §4.6:
// "Directory entries are 32 bytes").
const dirEntrySize = 32

const (
	attrReadOnly = 0x01
	attrHidden   = 0x02
	attrSystem   = 0x04
	attrVolumeID = 0x08
	attrDir      = 0x10
	attrArchive  = 0x20
	attrLongName = 0x0F
)

const (
	entryFreeAfter = 0x00 // this slot and all following are free
	entryDeleted   = 0xE5
)

// rawDirEntry is the parsed form of one 32-byte directory slot.
type rawDirEntry struct {
	name11      [11]byte
	attributes  byte
	clusterHigh uint16
	clusterLow  uint16
	size        uint32
}

func parseDirEntry(b []byte) rawDirEntry {
	var e rawDirEntry
	copy(e.name11[:], b[0:11])
	e.attributes = b[11]
	e.clusterHigh = binary.LittleEndian.Uint16(b[20:22])
	e.clusterLow = binary.LittleEndian.Uint16(b[26:28])
	e.size = binary.LittleEndian.Uint32(b[28:32])
	return e
}

func encodeDirEntry(e rawDirEntry) []byte {
	buf := make([]byte, dirEntrySize)
	copy(buf[0:11], e.name11[:])
	buf[11] = e.attributes
	binary.LittleEndian.PutUint16(buf[20:22], e.clusterHigh)
	binary.LittleEndian.PutUint16(buf[26:28], e.clusterLow)
	binary.LittleEndian.PutUint32(buf[28:32], e.size)
	return buf
}

func (e rawDirEntry) cluster() uint32 {
	return uint32(e.clusterHigh)<<16 | uint32(e.clusterLow)
}

func (e *rawDirEntry) setCluster(c uint32) {
	e.clusterHigh = uint16(c >> 16)
	e.clusterLow = uint16(c & 0xFFFF)
}

func (e rawDirEntry) isDirectory() bool { return e.attributes&attrDir != 0 }

// shortName decodes the packed 8.3 filename, trimming trailing spaces
// from both the base and extension (spec.md §4.6).
func shortName(raw [11]byte) string {
	base := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// encodeShortName packs name into an 11-byte 8.3 slot. Long file names
// are a spec.md Non-goal, so names that don't fit 8.3 are rejected.
func encodeShortName(name string) ([11]byte, error) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base, ext, _ := strings.Cut(name, ".")
	if len(base) == 0 || len(base) > 8 || len(ext) > 3 {
		return out, kerr.New(kerr.InvalidPath, "name does not fit 8.3: "+name)
	}
	copy(out[0:8], strings.ToUpper(base))
	copy(out[8:11], strings.ToUpper(ext))
	return out, nil
}

func dotEntry(name string, cluster uint32) rawDirEntry {
	var raw [11]byte
	for i := range raw {
		raw[i] = ' '
	}
	copy(raw[:], name)
	e := rawDirEntry{name11: raw, attributes: attrDir}
	e.setCluster(cluster)
	return e
}
