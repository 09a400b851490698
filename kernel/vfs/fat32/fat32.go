// Package fat32 implements the on-disk FAT32 filesystem back-end of
// spec.md §4.6 over a kernel/blockdev.Device, satisfying kernel/vfs's
// Backend interface.
//
// Grounded on the original's kernel/fat32.h (packed boot sector and
// directory entry layouts, runtime fat32_fs_t/fat32_file_t shapes) and
// fat32.cpp/fat32_vfs.cpp's algorithm shapes (cluster chain walk, 8.3
// directory scan, linear-scan cluster allocation).
package fat32

import (
	"errors"
	"sync"

	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/blockdev"
	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/vfs"
)

var (
	errShortBootSector = errors.New("fat32: boot sector shorter than 512 bytes")
	errBadSignature    = errors.New("fat32: missing 0xAA55 boot sector signature")
)

// FAT32 cluster-value sentinels (spec.md §4.6).
const (
	endOfChainMin = 0x0FFFFFF8
	endCluster    = 0x0FFFFFFF
	badCluster    = 0x0FFFFFF7
	freeCluster   = 0x00000000
	fatEntryMask  = 0x0FFFFFFF
)

func isEndOfChain(v uint32) bool { return v&fatEntryMask >= endOfChainMin }

// FS is a mounted FAT32 volume.
type FS struct {
	mu sync.Mutex

	dev blockdev.Device
	log *kserial.Logger

	bytesPerSector    uint32
	sectorsPerCluster uint32
	reservedSectors   uint32
	numFATs           uint32
	fatSize           uint32
	rootCluster       uint32
	dataStartSector   uint32
	fatStartSector    uint32
	totalClusters     uint32

	fat []uint32 // in-memory copy of the primary FAT, indexed by cluster number

	openCount map[uint32]int // slotKey (entryCluster<<8 | index) -> open handle count
}

// Mount reads sector 0 from dev, validates the boot sector, and loads the
// entire primary FAT into memory (spec.md §4.6 "Mount").
func Mount(dev blockdev.Device, log *kserial.Logger) (*FS, error) {
	if log == nil {
		log = kserial.NewDiscard()
	}
	sector := make([]byte, bootSectorSize)
	if err := dev.ReadSectors(0, 1, sector); err != nil {
		log.Error("fat32: failed to read boot sector", kserial.KVErr(err))
		return nil, kerr.Wrap(kerr.Error, "read boot sector", err)
	}
	bs, err := parseBootSector(sector)
	if err != nil {
		log.Error("fat32: invalid boot sector", kserial.KVErr(err))
		return nil, kerr.Wrap(kerr.Error, "parse boot sector", err)
	}
	if bs.FATSize16 != 0 {
		return nil, kerr.New(kerr.Error, "fat32: fat_size_16 must be 0 on a FAT32 volume")
	}
	if bs.FATSize32 == 0 {
		return nil, kerr.New(kerr.Error, "fat32: fat_size_32 must be nonzero")
	}
	if bs.BytesPerSector != blockdev.SectorSize {
		return nil, kerr.New(kerr.Error, "fat32: bytes_per_sector must be 512")
	}

	fs := &FS{
		dev:               dev,
		log:               log,
		bytesPerSector:    uint32(bs.BytesPerSector),
		sectorsPerCluster: uint32(bs.SectorsPerCluster),
		reservedSectors:   uint32(bs.ReservedSectors),
		numFATs:           uint32(bs.NumFATs),
		fatSize:           bs.FATSize32,
		rootCluster:       bs.RootCluster,
		openCount:         map[uint32]int{},
	}
	fs.fatStartSector = fs.reservedSectors
	fs.dataStartSector = fs.reservedSectors + fs.numFATs*fs.fatSize
	total := bs.TotalSectors32
	if total == 0 {
		total = uint32(bs.TotalSectors16)
	}
	if total <= fs.dataStartSector {
		return nil, kerr.New(kerr.Error, "fat32: total_sectors too small for geometry")
	}
	fs.totalClusters = (total - fs.dataStartSector) / fs.sectorsPerCluster

	if err := fs.loadFAT(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FS) bytesPerCluster() uint32 { return fs.bytesPerSector * fs.sectorsPerCluster }

// Info is the fsinfo shell command's payload: the geometry Mount parsed
// out of the boot sector plus a live free-cluster count, the Go shape of
// the original's fat32_get_fs_info().
type Info struct {
	BytesPerSector    uint32
	SectorsPerCluster uint32
	TotalClusters     uint32
	FreeClusters      uint32
	RootCluster       uint32
}

// Info reports the mounted volume's geometry and current free space.
func (fs *FS) Info() Info {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var free uint32
	for c := uint32(2); c-2 < fs.totalClusters && c < uint32(len(fs.fat)); c++ {
		if fs.fat[c] == freeCluster {
			free++
		}
	}
	return Info{
		BytesPerSector:    fs.bytesPerSector,
		SectorsPerCluster: fs.sectorsPerCluster,
		TotalClusters:     fs.totalClusters,
		FreeClusters:      free,
		RootCluster:       fs.rootCluster,
	}
}

func (fs *FS) loadFAT() error {
	entries := fs.fatSize * fs.bytesPerSector / 4
	fs.fat = make([]uint32, entries)
	buf := make([]byte, fs.fatSize*fs.bytesPerSector)
	if err := fs.dev.ReadSectors(fs.fatStartSector, fs.fatSize, buf); err != nil {
		return kerr.Wrap(kerr.Error, "load FAT", err)
	}
	for i := range fs.fat {
		fs.fat[i] = leUint32(buf[i*4:])
	}
	return nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// clusterToSector implements fat32_cluster_to_sector.
func (fs *FS) clusterToSector(c uint32) uint32 {
	return fs.dataStartSector + (c-2)*fs.sectorsPerCluster
}

// nextCluster implements fat32_get_next_cluster, with the corrected
// spec.md §9 behavior: c >= total_clusters is OutOfRange, distinguishable
// from a legitimate end-of-chain marker.
func (fs *FS) nextCluster(c uint32) (uint32, error) {
	if c >= uint32(len(fs.fat)) || c-2 >= fs.totalClusters {
		return 0, kerr.New(kerr.OutOfRange, "cluster out of range")
	}
	return fs.fat[c] & fatEntryMask, nil
}

// setFATEntry updates the in-memory FAT and flushes the affected sector
// to every FAT copy on disk (spec.md §4.6: "The updated FAT sectors must
// be written to both FAT copies").
func (fs *FS) setFATEntry(c uint32, value uint32) error {
	fs.fat[c] = value & fatEntryMask

	entrySector := (c * 4) / fs.bytesPerSector
	entryOffset := (c * 4) % fs.bytesPerSector

	sector := make([]byte, fs.bytesPerSector)
	for i := uint32(0); i < fs.numFATs; i++ {
		lba := fs.fatStartSector + i*fs.fatSize + entrySector
		if err := fs.dev.ReadSectors(lba, 1, sector); err != nil {
			return kerr.Wrap(kerr.Error, "read FAT sector for update", err)
		}
		putLeUint32(sector[entryOffset:], value&fatEntryMask)
		if err := fs.dev.WriteSectors(lba, 1, sector); err != nil {
			return kerr.Wrap(kerr.Error, "flush FAT sector", err)
		}
	}
	return nil
}

// allocCluster linearly scans the FAT for a free cluster, marks it
// end-of-chain, and flushes (spec.md §4.6 "Allocate a free cluster by
// linear scan of the FAT").
func (fs *FS) allocCluster() (uint32, error) {
	for c := uint32(2); c-2 < fs.totalClusters; c++ {
		if fs.fat[c] == freeCluster {
			if err := fs.setFATEntry(c, endCluster); err != nil {
				return 0, err
			}
			return c, nil
		}
	}
	return 0, kerr.New(kerr.NoSpace, "no free clusters")
}

// freeChain marks every cluster in the chain starting at start as free.
func (fs *FS) freeChain(start uint32) error {
	c := start
	for {
		next, err := fs.nextCluster(c)
		if err != nil {
			return err
		}
		if err := fs.setFATEntry(c, freeCluster); err != nil {
			return err
		}
		if isEndOfChain(next) {
			return nil
		}
		c = next
	}
}

func (fs *FS) readCluster(c uint32) ([]byte, error) {
	buf := make([]byte, fs.bytesPerCluster())
	if err := fs.dev.ReadSectors(fs.clusterToSector(c), fs.sectorsPerCluster, buf); err != nil {
		return nil, kerr.Wrap(kerr.Error, "read cluster", err)
	}
	return buf, nil
}

func (fs *FS) writeCluster(c uint32, buf []byte) error {
	if err := fs.dev.WriteSectors(fs.clusterToSector(c), fs.sectorsPerCluster, buf); err != nil {
		return kerr.Wrap(kerr.Error, "write cluster", err)
	}
	return nil
}

// Unmount is a no-op beyond satisfying the Backend interface: the
// blockdev.Device (and its advisory lock) outlives individual mounts and
// is closed by whoever opened it.
func (fs *FS) Unmount(mount *vfs.Mount) error { return nil }
