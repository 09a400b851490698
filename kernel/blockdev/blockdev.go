// Package blockdev implements the host stand-in for the out-of-scope IDE
// PIO driver (spec.md §1 "OUT of scope"): a 512-byte sectorwise
// read/write interface that kernel/vfs/fat32 drives.
//
// FileDevice backs sectors with a flat file via golang.org/x/sys/unix
// pread/pwrite (no seek races between concurrent readers/writers), holds
// an advisory lock for the lifetime of the mount so only one kernel
// instance ever writes the image, and watches the file for external
// truncation/replacement so the in-memory FAT cache doesn't silently
// diverge from the backing store.
package blockdev

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/kerr"
)

// SectorSize is the only sector size this kernel's FAT32 back-end
// supports (spec.md §4.6: "bytes_per_sector == 512").
const SectorSize = 512

// Device is the vtable kernel/vfs/fat32 issues sector I/O through.
type Device interface {
	ReadSectors(lba uint32, count uint32, buf []byte) error
	WriteSectors(lba uint32, count uint32, buf []byte) error
	SectorCount() (uint32, error)
}

// FileDevice is a Device backed by a flat disk-image file.
type FileDevice struct {
	mu     sync.Mutex
	f      *os.File
	lock   *flock.Flock
	watch  *fsnotify.Watcher
	log    *kserial.Logger
	path   string
	closed bool
}

// Open opens path as a block device, taking an exclusive advisory lock
// (spec.md §5: "FAT in-memory cache: single writer") and starting a
// watch for external truncation/replacement. log may be nil to discard
// warnings.
func Open(path string, log *kserial.Logger) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, kerr.Wrap(kerr.Error, "open disk image "+path, err)
	}

	l := flock.New(path + ".lock")
	locked, err := l.TryLock()
	if err != nil || !locked {
		f.Close()
		return nil, kerr.New(kerr.Error, "disk image "+path+" is already locked by another instance")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.Unlock()
		f.Close()
		return nil, kerr.Wrap(kerr.Error, "create fsnotify watcher", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		l.Unlock()
		f.Close()
		return nil, kerr.Wrap(kerr.Error, "watch disk image "+path, err)
	}

	if log == nil {
		log = kserial.NewDiscard()
	}

	d := &FileDevice{f: f, lock: l, watch: watcher, log: log, path: path}
	go d.watchLoop()
	return d, nil
}

func (d *FileDevice) watchLoop() {
	for {
		select {
		case ev, ok := <-d.watch.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				d.log.Warn("backing image changed externally, FAT cache may be stale",
					kserial.KV("image", d.path), kserial.KV("op", ev.Op.String()))
			}
		case err, ok := <-d.watch.Errors:
			if !ok {
				return
			}
			d.log.Warn("fsnotify watch error", kserial.KVErr(err))
		}
	}
}

// ReadSectors reads count sectors starting at lba into buf, which must be
// at least count*SectorSize bytes.
func (d *FileDevice) ReadSectors(lba uint32, count uint32, buf []byte) error {
	need := int(count) * SectorSize
	if len(buf) < need {
		return kerr.New(kerr.Error, "read buffer too small")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kerr.New(kerr.Error, "device closed")
	}
	n, err := unix.Pread(int(d.f.Fd()), buf[:need], int64(lba)*SectorSize)
	if err != nil {
		return kerr.Wrap(kerr.Error, fmt.Sprintf("pread lba=%d count=%d", lba, count), err)
	}
	if n != need {
		return kerr.New(kerr.Error, "short read from disk image")
	}
	return nil
}

// WriteSectors writes count sectors starting at lba from buf. Unlike the
// original's ide_write_sectors stub (spec.md §9 Open Questions), this
// really persists to the backing file.
func (d *FileDevice) WriteSectors(lba uint32, count uint32, buf []byte) error {
	need := int(count) * SectorSize
	if len(buf) < need {
		return kerr.New(kerr.Error, "write buffer too small")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kerr.New(kerr.Error, "device closed")
	}
	n, err := unix.Pwrite(int(d.f.Fd()), buf[:need], int64(lba)*SectorSize)
	if err != nil {
		return kerr.Wrap(kerr.Error, fmt.Sprintf("pwrite lba=%d count=%d", lba, count), err)
	}
	if n != need {
		return kerr.New(kerr.Error, "short write to disk image")
	}
	return nil
}

// SectorCount returns the backing file's size in whole sectors.
func (d *FileDevice) SectorCount() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, err := d.f.Stat()
	if err != nil {
		return 0, kerr.Wrap(kerr.Error, "stat disk image", err)
	}
	return uint32(info.Size() / SectorSize), nil
}

// Close stops the watch, releases the advisory lock, and closes the
// backing file.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.watch.Close()
	d.lock.Unlock()
	return d.f.Close()
}
