package fat32

import "encoding/binary"

// bootSectorSize is the on-disk size of fat32_boot_sector_t (spec.md §6):
// the packed layout is reproduced here as manual byte offsets rather than
// an unsafe struct cast, since Go has no portable __attribute__((packed)).
const bootSectorSize = 512

const (
	offBytesPerSector    = 11
	offSectorsPerCluster = 13
	offReservedSectors   = 14
	offNumFATs           = 16
	offTotalSectors16    = 19
	offFATSize16         = 22
	offTotalSectors32    = 32
	offFATSize32         = 36
	offRootCluster       = 44
	offVolumeID          = 67
	offSignature         = 510
)

const bootSignature = 0xAA55

type bootSector struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	TotalSectors16    uint16
	FATSize16         uint16
	TotalSectors32    uint32
	FATSize32         uint32
	RootCluster       uint32
	VolumeID          uint32
}

func parseBootSector(sector []byte) (bootSector, error) {
	if len(sector) < bootSectorSize {
		return bootSector{}, errShortBootSector
	}
	sig := binary.LittleEndian.Uint16(sector[offSignature:])
	if sig != bootSignature {
		return bootSector{}, errBadSignature
	}
	bs := bootSector{
		BytesPerSector:    binary.LittleEndian.Uint16(sector[offBytesPerSector:]),
		SectorsPerCluster: sector[offSectorsPerCluster],
		ReservedSectors:   binary.LittleEndian.Uint16(sector[offReservedSectors:]),
		NumFATs:           sector[offNumFATs],
		TotalSectors16:    binary.LittleEndian.Uint16(sector[offTotalSectors16:]),
		FATSize16:         binary.LittleEndian.Uint16(sector[offFATSize16:]),
		TotalSectors32:    binary.LittleEndian.Uint32(sector[offTotalSectors32:]),
		FATSize32:         binary.LittleEndian.Uint32(sector[offFATSize32:]),
		RootCluster:       binary.LittleEndian.Uint32(sector[offRootCluster:]),
		VolumeID:          binary.LittleEndian.Uint32(sector[offVolumeID:]),
	}
	return bs, nil
}

func encodeBootSector(bs bootSector) []byte {
	buf := make([]byte, bootSectorSize)
	buf[0], buf[1], buf[2] = 0xEB, 0x58, 0x90 // jump_boot
	copy(buf[3:11], []byte("CONTOS32"))
	binary.LittleEndian.PutUint16(buf[offBytesPerSector:], bs.BytesPerSector)
	buf[offSectorsPerCluster] = bs.SectorsPerCluster
	binary.LittleEndian.PutUint16(buf[offReservedSectors:], bs.ReservedSectors)
	buf[offNumFATs] = bs.NumFATs
	binary.LittleEndian.PutUint16(buf[offTotalSectors16:], bs.TotalSectors16)
	buf[21] = 0xF8 // media_type: fixed disk
	binary.LittleEndian.PutUint16(buf[offFATSize16:], bs.FATSize16)
	binary.LittleEndian.PutUint32(buf[offTotalSectors32:], bs.TotalSectors32)
	binary.LittleEndian.PutUint32(buf[offFATSize32:], bs.FATSize32)
	binary.LittleEndian.PutUint32(buf[offRootCluster:], bs.RootCluster)
	buf[48] = 0x01 // fs_info sector
	buf[50], buf[51] = 0x00, 0x00 // backup_boot_sector: none
	buf[64] = 0x80                // drive_number
	buf[66] = 0x29                // boot_signature (FAT32_BOOT_SIG)
	binary.LittleEndian.PutUint32(buf[offVolumeID:], bs.VolumeID)
	copy(buf[71:82], []byte("NO NAME    "))
	copy(buf[82:90], []byte("FAT32   "))
	binary.LittleEndian.PutUint16(buf[offSignature:], bootSignature)
	return buf
}
