package fat32

import (
	"github.com/dchest/safefile"
	"github.com/google/uuid"

	"github.com/antpln/continuumos/kernel/kerr"
)

// Format lays out a brand-new FAT32 image of totalSectors sectors and
// atomically replaces path with it via safefile, so a crash or
// concurrent reader never observes a half-written image. This is the
// host stand-in for running mkfs.fat32 against a fresh disk before first
// boot; a live mounted FS never calls this (it only ever patches the
// existing image in place through its blockdev.Device).
func Format(path string, totalSectors uint32) error {
	const (
		bytesPerSector    = blockdevSectorSize
		sectorsPerCluster = 8
		reservedSectors   = 32
		numFATs           = 2
	)
	if totalSectors <= reservedSectors {
		return kerr.New(kerr.Error, "fat32: image too small to format")
	}

	fatSize := fatSize32For(totalSectors, reservedSectors, sectorsPerCluster, numFATs)
	dataStart := reservedSectors + numFATs*fatSize
	if totalSectors <= dataStart {
		return kerr.New(kerr.Error, "fat32: image too small for computed FAT size")
	}
	totalClusters := (totalSectors - dataStart) / sectorsPerCluster
	if totalClusters < 3 {
		return kerr.New(kerr.Error, "fat32: image too small to hold a root directory")
	}

	image := make([]byte, uint64(totalSectors)*bytesPerSector)

	volID := uuid.New()
	bs := bootSector{
		BytesPerSector:    bytesPerSector,
		SectorsPerCluster: sectorsPerCluster,
		ReservedSectors:   reservedSectors,
		NumFATs:           numFATs,
		TotalSectors32:    totalSectors,
		FATSize32:         fatSize,
		RootCluster:       2,
		VolumeID:          leUint32(volID[0:4]),
	}
	copy(image[0:bootSectorSize], encodeBootSector(bs))

	// Seed both FAT copies: cluster 0/1 reserved markers, cluster 2 (root
	// directory) marked end-of-chain, everything else free.
	fatBytes := make([]byte, 4*3)
	putLeUint32(fatBytes[0:4], 0x0FFFFFF8) // media descriptor copy
	putLeUint32(fatBytes[4:8], 0x0FFFFFFF)
	putLeUint32(fatBytes[8:12], endCluster) // root directory: single cluster
	for i := uint32(0); i < numFATs; i++ {
		off := uint64(reservedSectors+i*fatSize) * bytesPerSector
		copy(image[off:], fatBytes)
	}

	// Root directory cluster starts zeroed (first byte 0x00 = empty dir).
	// safefile.Create writes to a temp file in the same directory and
	// renames it into place on Close, so a concurrent reader never
	// observes a partially written image.
	f, err := safefile.Create(path, 0644)
	if err != nil {
		return kerr.Wrap(kerr.Error, "create disk image "+path, err)
	}
	if _, err := f.Write(image); err != nil {
		f.Close()
		return kerr.Wrap(kerr.Error, "write disk image "+path, err)
	}
	return f.Close()
}

const blockdevSectorSize = 512

// fatSize32For computes FATSz32 the way standard FAT32 formatters do
// (Microsoft fatgen103's reference formula), rounded up.
func fatSize32For(totalSectors, reservedSectors, sectorsPerCluster, numFATs uint32) uint32 {
	tmp1 := totalSectors - reservedSectors
	tmp2 := (256*sectorsPerCluster + numFATs) / 2
	return (tmp1 + tmp2 - 1) / tmp2
}
