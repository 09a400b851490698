package bootcfg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/antpln/continuumos/internal/kserial"
)

const (
	defaultLogLevel = `INFO`
	defaultPITHz    = 100
	defaultCols     = 80
	defaultRows     = 25
)

var (
	ErrInvalidLogLevel     = errors.New("invalid Log-Level")
	ErrNoMounts             = errors.New("no [mount] sections declared")
	ErrDuplicateMountPoint = errors.New("duplicate mount point")
	ErrMissingDiskImage    = errors.New("fat32 mount declared with no Disk-Image")
	ErrUnknownFSType       = errors.New("unknown Type, want ramfs or fat32")
)

// MountSection describes one [mount "<point>"] stanza.
type MountSection struct {
	Type       string // "ramfs" | "fat32"
	Disk_Image string // required when Type == "fat32"
	Device_Id  uint8
}

// Global holds the [global] stanza: logging, framebuffer, and timer
// preferences, mirroring the shape of the teacher's IngestConfig global
// section.
type Global struct {
	Log_Level         string
	Log_File          string
	Pit_Hz            uint
	Framebuffer_Mode  string // "multiboot" | "bga-probe"
	Width             uint
	Height            uint
	Double_Buffer     bool
}

// BootConfig is the root of a ContinuumOS boot descriptor.
type BootConfig struct {
	Global Global
	Mount  map[string]*MountSection
}

// Load reads and verifies a boot descriptor from path, applying overlay
// fragments from overlayDir (if non-empty) afterward.
func Load(path, overlayDir string) (*BootConfig, error) {
	var bc BootConfig
	if err := LoadFile(&bc, path); err != nil {
		return nil, err
	}
	if overlayDir != `` {
		if err := LoadOverlays(&bc, overlayDir); err != nil {
			return nil, err
		}
	}
	if err := bc.Verify(); err != nil {
		return nil, err
	}
	return &bc, nil
}

// Verify fills in defaults and validates the descriptor the way
// IngestConfig.Verify does for ingester configs.
func (bc *BootConfig) Verify() error {
	bc.Global.Log_Level = strings.ToUpper(strings.TrimSpace(bc.Global.Log_Level))
	if bc.Global.Log_Level == `` {
		bc.Global.Log_Level = defaultLogLevel
	}
	if _, err := kserial.LevelFromString(bc.Global.Log_Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, bc.Global.Log_Level)
	}

	if bc.Global.Pit_Hz == 0 {
		bc.Global.Pit_Hz = defaultPITHz
	}
	if bc.Global.Width == 0 {
		bc.Global.Width = 640
	}
	if bc.Global.Height == 0 {
		bc.Global.Height = 480
	}
	switch strings.ToLower(bc.Global.Framebuffer_Mode) {
	case ``:
		bc.Global.Framebuffer_Mode = "multiboot"
	case "multiboot", "bga-probe":
	default:
		return fmt.Errorf("Framebuffer-Mode must be multiboot or bga-probe, got %q", bc.Global.Framebuffer_Mode)
	}

	if len(bc.Mount) == 0 {
		return ErrNoMounts
	}
	seen := make(map[string]bool, len(bc.Mount))
	for point, m := range bc.Mount {
		if seen[point] {
			return fmt.Errorf("%w: %q", ErrDuplicateMountPoint, point)
		}
		seen[point] = true
		switch strings.ToLower(m.Type) {
		case "ramfs":
		case "fat32":
			if m.Disk_Image == `` {
				return fmt.Errorf("%w: mount %q", ErrMissingDiskImage, point)
			}
			if _, err := os.Stat(m.Disk_Image); err != nil {
				return fmt.Errorf("disk image for mount %q: %w", point, err)
			}
		default:
			return fmt.Errorf("%w: mount %q has Type %q", ErrUnknownFSType, point, m.Type)
		}
	}
	return nil
}
