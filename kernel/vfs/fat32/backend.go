package fat32

import (
	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/vfs"
)

// fileHandle is the Go shape of spec.md §3's "FAT32 open file": every
// field the original's fat32_file_t carries, so close-time flush of
// file_size has everything it needs.
type fileHandle struct {
	startCluster    uint32
	currentCluster  uint32
	fileSize        uint32
	position        uint32
	clusterPosition uint32
	lastCluster     uint32
	dirCluster      uint32 // directory containing this file's entry
	dirEntryCluster uint32 // cluster where the 32-byte entry physically lives
	dirEntryIndex   int
}

func slotKey(loc slotLoc) uint32 {
	// A directory's (cluster, index) pair is unique system-wide since
	// index is always < entries-per-cluster; pack them into one key for
	// the open-handle-count map.
	return loc.cluster<<8 | uint32(loc.index)
}

// Open implements vfs.Backend. Directories may not be opened as files
// (spec.md §4.6).
func (fs *FS) Open(mount *vfs.Mount, path string) (vfs.Handle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, parentCluster, err := fs.lookupPath(path)
	if err != nil {
		return nil, err
	}
	if s.entry.isDirectory() {
		return nil, kerr.New(kerr.InvalidPath, path+" is a directory")
	}

	start := s.entry.cluster()
	last := start
	if start != 0 {
		c := start
		for {
			next, err := fs.nextCluster(c)
			if err != nil {
				return nil, err
			}
			if isEndOfChain(next) {
				last = c
				break
			}
			c = next
		}
	}

	fs.openCount[slotKey(s.loc)]++
	return &fileHandle{
		startCluster:    start,
		currentCluster:  start,
		fileSize:        s.entry.size,
		lastCluster:     last,
		dirCluster:      parentCluster,
		dirEntryCluster: s.loc.cluster,
		dirEntryIndex:   s.loc.index,
	}, nil
}

// Read implements spec.md §4.6 "Read": buffered by cluster, clamped
// against file_size.
func (fs *FS) Read(h vfs.Handle, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	hd := h.(*fileHandle)

	if hd.position >= hd.fileSize || hd.startCluster == 0 {
		return 0, nil
	}
	bpc := fs.bytesPerCluster()
	total := 0
	for total < len(buf) && hd.position < hd.fileSize {
		cluster, err := fs.readCluster(hd.currentCluster)
		if err != nil {
			return total, err
		}
		remaining := len(buf) - total
		clusterRemaining := int(bpc - hd.clusterPosition)
		fileRemaining := int(hd.fileSize - hd.position)
		n := min3(remaining, clusterRemaining, fileRemaining)
		copy(buf[total:total+n], cluster[hd.clusterPosition:int(hd.clusterPosition)+n])
		total += n
		hd.position += uint32(n)
		hd.clusterPosition += uint32(n)

		if hd.clusterPosition == bpc && hd.position < hd.fileSize {
			next, err := fs.nextCluster(hd.currentCluster)
			if err != nil {
				return total, err
			}
			if isEndOfChain(next) {
				break
			}
			hd.currentCluster = next
			hd.clusterPosition = 0
		}
	}
	return total, nil
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Write implements spec.md §4.6 "Write": extends the file by allocating
// clusters as needed, then updates the on-disk directory entry's
// file_size and first_cluster.
func (fs *FS) Write(h vfs.Handle, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	hd := h.(*fileHandle)

	bpc := fs.bytesPerCluster()
	if hd.startCluster == 0 {
		c, err := fs.allocCluster()
		if err != nil {
			return 0, err
		}
		hd.startCluster = c
		hd.currentCluster = c
		hd.lastCluster = c
	}

	total := 0
	for total < len(buf) {
		if hd.clusterPosition == bpc {
			next, err := fs.nextCluster(hd.currentCluster)
			if err != nil {
				return total, err
			}
			if isEndOfChain(next) {
				newCluster, err := fs.allocCluster()
				if err != nil {
					return total, err
				}
				if err := fs.setFATEntry(hd.currentCluster, newCluster); err != nil {
					return total, err
				}
				next = newCluster
				hd.lastCluster = newCluster
			}
			hd.currentCluster = next
			hd.clusterPosition = 0
		}

		cluster, err := fs.readCluster(hd.currentCluster)
		if err != nil {
			return total, err
		}
		remaining := len(buf) - total
		clusterRemaining := int(bpc - hd.clusterPosition)
		n := remaining
		if clusterRemaining < n {
			n = clusterRemaining
		}
		copy(cluster[hd.clusterPosition:int(hd.clusterPosition)+n], buf[total:total+n])
		if err := fs.writeCluster(hd.currentCluster, cluster); err != nil {
			return total, err
		}
		total += n
		hd.position += uint32(n)
		hd.clusterPosition += uint32(n)
		if hd.position > hd.fileSize {
			hd.fileSize = hd.position
		}
	}

	if err := fs.flushDirEntry(hd); err != nil {
		return total, err
	}
	return total, nil
}

// flushDirEntry rewrites the directory slot's file_size and first
// cluster fields to match the handle's current state.
func (fs *FS) flushDirEntry(hd *fileHandle) error {
	loc := slotLoc{cluster: hd.dirEntryCluster, index: hd.dirEntryIndex}
	buf, err := fs.readCluster(loc.cluster)
	if err != nil {
		return err
	}
	raw := buf[loc.index*dirEntrySize : (loc.index+1)*dirEntrySize]
	e := parseDirEntry(raw)
	e.setCluster(hd.startCluster)
	e.size = hd.fileSize
	copy(raw, encodeDirEntry(e))
	return fs.writeCluster(loc.cluster, buf)
}

// Seek repositions the handle, recomputing currentCluster/clusterPosition
// by walking the chain from start (spec.md §3 invariant:
// "current_cluster is reachable from start_cluster by exactly
// position / bytes_per_cluster FAT links").
func (fs *FS) Seek(h vfs.Handle, position uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	hd := h.(*fileHandle)
	if hd.startCluster == 0 {
		hd.position = position
		return nil
	}
	bpc := fs.bytesPerCluster()
	steps := position / bpc
	c := hd.startCluster
	for i := uint32(0); i < steps; i++ {
		next, err := fs.nextCluster(c)
		if err != nil {
			return err
		}
		if isEndOfChain(next) {
			break
		}
		c = next
	}
	hd.currentCluster = c
	hd.clusterPosition = position % bpc
	hd.position = position
	return nil
}

// Close decrements the open-handle count for this entry.
func (fs *FS) Close(h vfs.Handle) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	hd := h.(*fileHandle)
	key := hd.dirEntryCluster<<8 | uint32(hd.dirEntryIndex)
	fs.openCount[key]--
	if fs.openCount[key] <= 0 {
		delete(fs.openCount, key)
	}
}

// Readdir lists the directory at path.
func (fs *FS) Readdir(mount *vfs.Mount, path string) ([]vfs.Dirent, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	s, _, err := fs.lookupPath(path)
	if err != nil {
		return nil, err
	}
	if !s.entry.isDirectory() {
		return nil, kerr.New(kerr.InvalidPath, path+" is not a directory")
	}
	entries, err := fs.walkDir(s.entry.cluster())
	if err != nil {
		return nil, err
	}
	out := make([]vfs.Dirent, 0, len(entries))
	for _, e := range entries {
		name := shortName(e.entry.name11)
		if name == "." || name == ".." {
			continue
		}
		typ := vfs.TypeFile
		if e.entry.isDirectory() {
			typ = vfs.TypeDirectory
		}
		out = append(out, vfs.Dirent{Name: name, Type: typ, Size: e.entry.size})
	}
	return out, nil
}

// Mkdir implements spec.md §4.6: allocates a directory entry plus a
// first cluster carrying "." and ".." entries.
func (fs *FS) Mkdir(mount *vfs.Mount, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parentCluster, name, err := fs.lookupParent(path)
	if err != nil {
		return err
	}
	if _, err := fs.lookupSlot(parentCluster, name); err == nil {
		return kerr.New(kerr.Error, path+" already exists")
	}

	newCluster, err := fs.allocCluster()
	if err != nil {
		return err
	}
	zero := make([]byte, fs.bytesPerCluster())
	copy(zero[0:dirEntrySize], encodeDirEntry(dotEntry(".", newCluster)))
	copy(zero[dirEntrySize:2*dirEntrySize], encodeDirEntry(dotEntry("..", parentCluster)))
	if err := fs.writeCluster(newCluster, zero); err != nil {
		return err
	}

	loc, err := fs.findFreeSlot(parentCluster)
	if err != nil {
		return err
	}
	nameBytes, err := encodeShortName(name)
	if err != nil {
		return err
	}
	e := rawDirEntry{name11: nameBytes, attributes: attrDir}
	e.setCluster(newCluster)
	return fs.writeSlot(loc, e)
}

// Rmdir requires an empty directory and no open handles anywhere in its
// subtree (spec.md §4.6).
func (fs *FS) Rmdir(mount *vfs.Mount, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentCluster, name, err := fs.lookupParent(path)
	if err != nil {
		return err
	}
	s, err := fs.lookupSlot(parentCluster, name)
	if err != nil {
		return err
	}
	if !s.entry.isDirectory() {
		return kerr.New(kerr.InvalidPath, path+" is not a directory")
	}

	children, err := fs.walkDir(s.entry.cluster())
	if err != nil {
		return err
	}
	for _, c := range children {
		n := shortName(c.entry.name11)
		if n != "." && n != ".." {
			return kerr.New(kerr.Error, path+" is not empty")
		}
	}
	if fs.openCount[slotKey(s.loc)] != 0 {
		return kerr.New(kerr.Error, path+" has open handles")
	}

	if err := fs.markSlotDeleted(s.loc); err != nil {
		return err
	}
	return fs.freeChain(s.entry.cluster())
}

// Create implements spec.md §4.6: allocates a zero-length file entry;
// its first cluster is assigned lazily on first Write.
func (fs *FS) Create(mount *vfs.Mount, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parentCluster, name, err := fs.lookupParent(path)
	if err != nil {
		return err
	}
	if _, err := fs.lookupSlot(parentCluster, name); err == nil {
		return kerr.New(kerr.Error, path+" already exists")
	}
	loc, err := fs.findFreeSlot(parentCluster)
	if err != nil {
		return err
	}
	nameBytes, err := encodeShortName(name)
	if err != nil {
		return err
	}
	return fs.writeSlot(loc, rawDirEntry{name11: nameBytes, attributes: attrArchive})
}

// Remove deletes a file entry and frees its cluster chain. Fails if any
// handle is open on it (spec.md §4.6).
func (fs *FS) Remove(mount *vfs.Mount, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parentCluster, name, err := fs.lookupParent(path)
	if err != nil {
		return err
	}
	s, err := fs.lookupSlot(parentCluster, name)
	if err != nil {
		return err
	}
	if s.entry.isDirectory() {
		return kerr.New(kerr.InvalidPath, path+" is a directory")
	}
	if fs.openCount[slotKey(s.loc)] != 0 {
		return kerr.New(kerr.Error, path+" is open")
	}
	if err := fs.markSlotDeleted(s.loc); err != nil {
		return err
	}
	if s.entry.cluster() != 0 {
		return fs.freeChain(s.entry.cluster())
	}
	return nil
}

// Stat returns a Dirent describing path.
func (fs *FS) Stat(mount *vfs.Mount, path string) (vfs.Dirent, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	s, _, err := fs.lookupPath(path)
	if err != nil {
		return vfs.Dirent{}, err
	}
	typ := vfs.TypeFile
	if s.entry.isDirectory() {
		typ = vfs.TypeDirectory
	}
	name := shortName(s.entry.name11)
	if path == "/" || path == "" {
		name = "/"
	}
	return vfs.Dirent{Name: name, Type: typ, Size: s.entry.size}, nil
}
