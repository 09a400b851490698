package bootcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "boot.conf")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0644))
	return p
}

func TestLoadValidDescriptor(t *testing.T) {
	disk := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(disk, []byte{0}, 0644))

	body := `
[global]
Log-Level=DEBUG
Pit-Hz=1000

[mount "/"]
Type=ramfs

[mount "/mnt/fat32"]
Type=fat32
Disk-Image=` + disk + `
Device-Id=0
`
	bc, err := Load(writeTemp(t, body), "")
	require.NoError(t, err)
	require.Equal(t, "DEBUG", bc.Global.Log_Level)
	require.EqualValues(t, 1000, bc.Global.Pit_Hz)
	require.Len(t, bc.Mount, 2)
	require.Equal(t, "ramfs", bc.Mount["/"].Type)
	require.Equal(t, "fat32", bc.Mount["/mnt/fat32"].Type)
}

func TestVerifyDefaults(t *testing.T) {
	body := `
[mount "/"]
Type=ramfs
`
	bc, err := Load(writeTemp(t, body), "")
	require.NoError(t, err)
	require.Equal(t, defaultLogLevel, bc.Global.Log_Level)
	require.EqualValues(t, defaultPITHz, bc.Global.Pit_Hz)
	require.Equal(t, "multiboot", bc.Global.Framebuffer_Mode)
}

func TestVerifyRejectsNoMounts(t *testing.T) {
	body := `[global]
Log-Level=INFO
`
	_, err := Load(writeTemp(t, body), "")
	require.ErrorIs(t, err, ErrNoMounts)
}

func TestVerifyRejectsMissingDiskImage(t *testing.T) {
	body := `
[mount "/mnt/fat32"]
Type=fat32
`
	_, err := Load(writeTemp(t, body), "")
	require.ErrorIs(t, err, ErrMissingDiskImage)
}

func TestVerifyRejectsUnknownType(t *testing.T) {
	body := `
[mount "/x"]
Type=zfs
`
	_, err := Load(writeTemp(t, body), "")
	require.ErrorIs(t, err, ErrUnknownFSType)
}

func TestLoadOverlaysMergesFragments(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.conf")
	require.NoError(t, os.WriteFile(base, []byte("[mount \"/\"]\nType=ramfs\n"), 0644))

	overlayDir := filepath.Join(dir, "conf.d")
	require.NoError(t, os.Mkdir(overlayDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(overlayDir, "extra.conf"),
		[]byte("[global]\nLog-Level=WARN\n"), 0644))

	bc, err := Load(base, overlayDir)
	require.NoError(t, err)
	require.Equal(t, "WARN", bc.Global.Log_Level)
}
