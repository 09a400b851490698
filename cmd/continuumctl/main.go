// Command continuumctl is the host entry point for this kernel: it reads
// a boot descriptor, mounts the configured filesystems, brings the
// process/compositor/PCI/timer core up, spawns the interactive shell as
// the first process, and — when asked — mirrors the compositor's
// topmost window into a real terminal instead of a framebuffer.
//
// Grounded on the shape of the teacher's ingester mains (e.g.
// fileFollow/main.go): flag parsing and a version switch in init(),
// config load plus logger wiring at the top of main(), graceful shutdown
// on os.Interrupt.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/antpln/continuumos/internal/bootcfg"
	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/apps/shell"
	"github.com/antpln/continuumos/kernel/blockdev"
	"github.com/antpln/continuumos/kernel/boot"
	"github.com/antpln/continuumos/kernel/elf"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/pci"
	"github.com/antpln/continuumos/kernel/scheduler"
	"github.com/antpln/continuumos/kernel/syscall"
	"github.com/antpln/continuumos/kernel/timer"
	"github.com/antpln/continuumos/kernel/vfs"
	"github.com/antpln/continuumos/kernel/vfs/fat32"
	"github.com/antpln/continuumos/kernel/vfs/ramfs"
)

const defaultConfigLoc = "continuum.conf"

var (
	configOverride = flag.String("config-file-override", "", "Override location for the boot descriptor")
	overlayDir     = flag.String("overlay-dir", "", "Directory of boot descriptor overlay fragments")
	logFile        = flag.String("log-file", "", "Override Log-File from the boot descriptor")
	visualize      = flag.Bool("visualize", false, "Mirror the compositor's topmost window into this terminal")
	ver            = flag.Bool("version", false, "Print the version information and exit")

	confLoc string
	lg      *kserial.Logger
)

func init() {
	flag.Parse()
	if *ver {
		fmt.Println("continuumctl (ContinuumOS host harness)")
		os.Exit(0)
	}
	if *configOverride == "" {
		confLoc = defaultConfigLoc
	} else {
		confLoc = *configOverride
	}
	lg = kserial.New(os.Stderr) // DO NOT close this, it would silence startup failures
}

func main() {
	cfg, err := bootcfg.Load(confLoc, *overlayDir)
	if err != nil {
		lg.Critical("failed to load boot descriptor", kserial.KV("path", confLoc), kserial.KVErr(err))
		os.Exit(1)
	}

	logPath := cfg.Global.Log_File
	if *logFile != "" {
		logPath = *logFile
	}
	if logPath != "" {
		fout, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			lg.Critical("failed to open log file", kserial.KV("path", logPath), kserial.KVErr(err))
			os.Exit(1)
		}
		if err := lg.AddWriter(fout); err != nil {
			lg.Critical("failed to attach log file writer", kserial.KVErr(err))
			os.Exit(1)
		}
	}
	if lvl, err := kserial.LevelFromString(cfg.Global.Log_Level); err == nil {
		lg.SetLevel(lvl)
	}

	v := vfs.New()
	disks := map[uint8]blockdev.Device{}
	if err := mountAll(cfg, v, disks); err != nil {
		lg.Critical("failed to mount configured filesystems", kserial.KVErr(err))
		os.Exit(1)
	}

	fb := gfx.New(uint32(cfg.Global.Width), uint32(cfg.Global.Height), 32)
	comp := gfx.Init(fb)

	bus := pci.New(&simulatedTopology{}, lg)
	sched := scheduler.New()

	symtab := elf.NewSymbolTable()
	tmr := timer.New(sched, uint32(cfg.Global.Pit_Hz))
	k := syscall.New(v, sched, comp, bus, symtab, lg)

	symtab.RegisterFunc("shell_entry", shell.NewEntry(k, disks, tmr))

	sys := boot.Start(boot.Config{
		Sched:             sched,
		Compositor:        comp,
		Timer:             tmr,
		PCI:               bus,
		PCIRescanInterval: 2 * time.Second,
		Log:               lg,
	})
	defer sys.Stop()

	shellRes, err := k.Dispatch(nil, syscall.StartProcess, syscall.Args{
		Name:      "nutshell",
		Entry:     shell.NewEntry(k, disks, tmr),
		StackSize: 8192,
	})
	if err != nil {
		lg.Critical("failed to start shell process", kserial.KVErr(err))
		os.Exit(1)
	}
	if _, err := k.Dispatch(nil, syscall.SchedulerSetForeground, syscall.Args{TargetPID: shellRes.Value}); err != nil {
		lg.Warn("failed to foreground shell", kserial.KVErr(err))
	}

	sch := make(chan os.Signal, 1)
	signal.Notify(sch, os.Interrupt)

	if *visualize {
		runVisualizer(comp, sched, sch)
	} else {
		<-sch
	}

	lg.Info("shutting down")
}

// mountAll walks the boot descriptor's [mount] stanzas in sorted order
// (a gcfg map has no defined iteration order, but mount order should not
// depend on it) and wires each one to the VFS: ramfs mounts get a fresh
// in-memory backend, fat32 mounts open their disk image through
// blockdev and hand the result to kernel/vfs/fat32.Mount.
func mountAll(cfg *bootcfg.BootConfig, v *vfs.VFS, disks map[uint8]blockdev.Device) error {
	points := make([]string, 0, len(cfg.Mount))
	for point := range cfg.Mount {
		points = append(points, point)
	}
	sort.Strings(points)

	for _, point := range points {
		m := cfg.Mount[point]
		switch m.Type {
		case "ramfs":
			if err := v.Mount(point, vfs.FSRamFS, m.Device_Id, ramfs.New()); err != nil {
				return fmt.Errorf("mount %q: %w", point, err)
			}
		case "fat32":
			dev, err := blockdev.Open(m.Disk_Image, lg)
			if err != nil {
				return fmt.Errorf("open disk image for %q: %w", point, err)
			}
			fs, err := fat32.Mount(dev, lg)
			if err != nil {
				return fmt.Errorf("mount fat32 at %q: %w", point, err)
			}
			if err := v.Mount(point, vfs.FSFat32, m.Device_Id, fs); err != nil {
				return fmt.Errorf("mount %q: %w", point, err)
			}
			disks[m.Device_Id] = dev
		}
	}
	return nil
}
