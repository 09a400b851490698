package fat32

import (
	"strings"

	"github.com/antpln/continuumos/kernel/kerr"
)

// slotLoc locates one 32-byte directory entry on disk.
type slotLoc struct {
	cluster uint32 // cluster holding this slot
	index   int    // slot index within that cluster
}

// slot pairs a parsed directory entry with its on-disk location.
type slot struct {
	entry rawDirEntry
	loc   slotLoc
}

func (fs *FS) entriesPerCluster() int {
	return int(fs.bytesPerCluster()) / dirEntrySize
}

// walkDir lists the real (non-deleted, non-LFN, non-volume-label)
// entries in the directory whose chain starts at dirCluster, following
// FAT links until the first 0x00-marked ("end of directory") slot
// (spec.md §4.6 "First-byte markers").
func (fs *FS) walkDir(dirCluster uint32) ([]slot, error) {
	var out []slot
	cluster := dirCluster
	perCluster := fs.entriesPerCluster()
	for {
		buf, err := fs.readCluster(cluster)
		if err != nil {
			return nil, err
		}
		for i := 0; i < perCluster; i++ {
			raw := buf[i*dirEntrySize : (i+1)*dirEntrySize]
			switch raw[0] {
			case entryFreeAfter:
				return out, nil
			case entryDeleted:
				continue
			}
			e := parseDirEntry(raw)
			if e.attributes == attrLongName || e.attributes&attrVolumeID != 0 {
				continue
			}
			out = append(out, slot{entry: e, loc: slotLoc{cluster: cluster, index: i}})
		}
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return nil, err
		}
		if isEndOfChain(next) {
			return out, nil
		}
		cluster = next
	}
}

// findFreeSlot returns the location of a reusable (0xE5) or terminal
// (0x00) directory slot under dirCluster's chain, extending the chain
// with a freshly zeroed cluster if every existing cluster is full
// (spec.md §4.6 "create / mkdir find a free 32-byte slot").
func (fs *FS) findFreeSlot(dirCluster uint32) (slotLoc, error) {
	cluster := dirCluster
	perCluster := fs.entriesPerCluster()
	for {
		buf, err := fs.readCluster(cluster)
		if err != nil {
			return slotLoc{}, err
		}
		for i := 0; i < perCluster; i++ {
			b := buf[i*dirEntrySize]
			if b == entryFreeAfter || b == entryDeleted {
				return slotLoc{cluster: cluster, index: i}, nil
			}
		}
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return slotLoc{}, err
		}
		if isEndOfChain(next) {
			newCluster, err := fs.allocCluster()
			if err != nil {
				return slotLoc{}, err
			}
			zero := make([]byte, fs.bytesPerCluster())
			if err := fs.writeCluster(newCluster, zero); err != nil {
				return slotLoc{}, err
			}
			if err := fs.setFATEntry(cluster, newCluster); err != nil {
				return slotLoc{}, err
			}
			return slotLoc{cluster: newCluster, index: 0}, nil
		}
		cluster = next
	}
}

// writeSlot writes e to its on-disk location.
func (fs *FS) writeSlot(loc slotLoc, e rawDirEntry) error {
	buf, err := fs.readCluster(loc.cluster)
	if err != nil {
		return err
	}
	copy(buf[loc.index*dirEntrySize:(loc.index+1)*dirEntrySize], encodeDirEntry(e))
	return fs.writeCluster(loc.cluster, buf)
}

// markSlotDeleted sets a slot's first byte to 0xE5 in place.
func (fs *FS) markSlotDeleted(loc slotLoc) error {
	buf, err := fs.readCluster(loc.cluster)
	if err != nil {
		return err
	}
	buf[loc.index*dirEntrySize] = entryDeleted
	return fs.writeCluster(loc.cluster, buf)
}

// lookupSlot finds the direct child named name under dirCluster.
func (fs *FS) lookupSlot(dirCluster uint32, name string) (slot, error) {
	entries, err := fs.walkDir(dirCluster)
	if err != nil {
		return slot{}, err
	}
	for _, s := range entries {
		if shortName(s.entry.name11) == name {
			return s, nil
		}
	}
	return slot{}, kerr.New(kerr.NotFound, name)
}

// lookupPath splits path on "/" and walks from the root cluster,
// returning the resolved slot plus its parent's cluster (spec.md §4.6
// "Path lookup").
func (fs *FS) lookupPath(path string) (s slot, parentCluster uint32, err error) {
	parts := splitPath(path)
	cluster := fs.rootCluster
	parentCluster = fs.rootCluster
	if len(parts) == 0 {
		return slot{entry: rawDirEntry{attributes: attrDir, clusterHigh: uint16(cluster >> 16), clusterLow: uint16(cluster)}}, parentCluster, nil
	}
	for i, part := range parts {
		found, err := fs.lookupSlot(cluster, part)
		if err != nil {
			return slot{}, 0, err
		}
		if i == len(parts)-1 {
			return found, cluster, nil
		}
		if !found.entry.isDirectory() {
			return slot{}, 0, kerr.New(kerr.InvalidPath, part+" is not a directory")
		}
		parentCluster = found.entry.cluster()
		cluster = found.entry.cluster()
	}
	return
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (fs *FS) lookupParent(path string) (parentCluster uint32, name string, err error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return 0, "", kerr.New(kerr.InvalidPath, "path has no name component")
	}
	parentPath := "/" + strings.Join(parts[:len(parts)-1], "/")
	s, _, err := fs.lookupPath(parentPath)
	if err != nil {
		return 0, "", err
	}
	if len(parts) == 1 {
		return fs.rootCluster, parts[0], nil
	}
	if !s.entry.isDirectory() {
		return 0, "", kerr.New(kerr.InvalidPath, parentPath+" is not a directory")
	}
	return s.entry.cluster(), parts[len(parts)-1], nil
}
