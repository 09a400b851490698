// Package vfs implements the kernel's virtual filesystem core (spec.md
// §4.4): path normalisation, the mount table, the global handle table,
// and dispatch to pluggable Backend implementations (kernel/vfs/ramfs,
// kernel/vfs/fat32).
//
// Grounded on the original's kernel/vfs.h + vfs.cpp: VFS_MAX_MOUNTS,
// VFS_MAX_OPEN_FILES, and the vfs_operations_t vtable are kept as named
// constants and a Go interface respectively.
package vfs

import (
	"strings"
	"sync"

	"github.com/antpln/continuumos/kernel/kerr"
)

const (
	// MaxMounts is the original's VFS_MAX_MOUNTS.
	MaxMounts = 8
	// MaxPath is the original's VFS_MAX_PATH.
	MaxPath = 256
	// MaxName is the original's VFS_MAX_NAME.
	MaxName = 64
	// MaxOpenFiles is the original's VFS_MAX_OPEN_FILES.
	MaxOpenFiles = 64
)

// EntryType discriminates a Dirent.
type EntryType uint8

const (
	TypeFile EntryType = iota + 1
	TypeDirectory
)

// Dirent is the original's vfs_dirent_t: a directory entry name, type,
// and size (spec.md §3 "Dirent").
type Dirent struct {
	Name string
	Type EntryType
	Size uint32
}

// Handle is a filesystem-specific open-file token a Backend hands back
// from Open; the VFS layer never interprets it.
type Handle any

// Backend is the back-end vtable every filesystem implementation
// (ramfs, fat32) must satisfy (spec.md §4.4's "Back-end vtable").
// Unmount is optional: a backend that never needs teardown state can
// leave it a no-op.
type Backend interface {
	Open(mount *Mount, path string) (Handle, error)
	Read(h Handle, buf []byte) (int, error)
	Write(h Handle, buf []byte) (int, error)
	Seek(h Handle, position uint32) error
	Close(h Handle)
	Readdir(mount *Mount, path string) ([]Dirent, error)
	Mkdir(mount *Mount, path string) error
	Rmdir(mount *Mount, path string) error
	Create(mount *Mount, path string) error
	Remove(mount *Mount, path string) error
	Stat(mount *Mount, path string) (Dirent, error)
	Unmount(mount *Mount) error
}

// FSType tags which kind of backend a Mount uses (spec.md §3 "VFS Mount").
type FSType uint8

const (
	FSRamFS FSType = iota + 1
	FSFat32
)

func (f FSType) String() string {
	switch f {
	case FSRamFS:
		return "ramfs"
	case FSFat32:
		return "fat32"
	}
	return "unknown"
}

// Mount is the original's vfs_mount_t.
type Mount struct {
	MountPoint string
	FSType     FSType
	DeviceID   uint8
	Backend    Backend
	Mounted    bool
}

// openFile is the global handle-table slot: the original's vfs_file_t.
type openFile struct {
	fsHandle Handle
	mount    *Mount
	position uint32
	inUse    bool
}

// VFS owns the mount table, the global handle table, and the
// process-wide current working directory (spec.md §4.4 "Working
// directory").
type VFS struct {
	mu     sync.Mutex
	mounts [MaxMounts]*Mount
	files  [MaxOpenFiles]openFile
	cwd    string
}

// New returns a VFS with cwd "/" and no mounts.
func New() *VFS {
	return &VFS{cwd: "/"}
}

// NormalizePath resolves "." and "..", collapses "//", strips a trailing
// "/" (except for root), and makes relative paths absolute against cwd
// (spec.md §4.4 "Path normalisation"). "" is treated as ".".
func NormalizePath(cwd, path string) (string, error) {
	if len(path) > MaxPath {
		return "", kerr.New(kerr.InvalidPath, "path exceeds VFS_MAX_PATH")
	}
	if path == "" {
		path = "."
	}
	abs := path
	if !strings.HasPrefix(abs, "/") {
		abs = cwd + "/" + abs
	}

	parts := strings.Split(abs, "/")
	var stack []string
	for _, p := range parts {
		switch p {
		case "", ".":
			// skip: collapses "//" and drops "."
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			// ".." at root is a no-op
		default:
			if len(p) > MaxName {
				return "", kerr.New(kerr.InvalidPath, "path component exceeds VFS_MAX_NAME")
			}
			stack = append(stack, p)
		}
	}

	normalized := "/" + strings.Join(stack, "/")
	if len(normalized) > MaxPath {
		return "", kerr.New(kerr.InvalidPath, "normalised path exceeds VFS_MAX_PATH")
	}
	return normalized, nil
}

// Mount attaches a backend at mountpoint. Fails AlreadyMounted if the
// exact mountpoint is already taken, NoSpace if MaxMounts is reached.
func (v *VFS) Mount(mountpoint string, fsType FSType, deviceID uint8, backend Backend) error {
	norm, err := NormalizePath(v.cwdLocked(), mountpoint)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	free := -1
	for i, m := range v.mounts {
		if m == nil {
			if free == -1 {
				free = i
			}
			continue
		}
		if m.MountPoint == norm {
			return kerr.New(kerr.AlreadyMounted, norm)
		}
	}
	if free == -1 {
		return kerr.New(kerr.NoSpace, "mount table full")
	}
	v.mounts[free] = &Mount{
		MountPoint: norm,
		FSType:     fsType,
		DeviceID:   deviceID,
		Backend:    backend,
		Mounted:    true,
	}
	return nil
}

// Unmount force-closes every open handle bound to mountpoint, invokes
// the backend's Unmount, and frees the slot.
func (v *VFS) Unmount(mountpoint string) error {
	norm, err := NormalizePath(v.cwdLocked(), mountpoint)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	idx := -1
	for i, m := range v.mounts {
		if m != nil && m.MountPoint == norm {
			idx = i
			break
		}
	}
	if idx == -1 {
		return kerr.New(kerr.NotFound, norm)
	}
	m := v.mounts[idx]

	for i := range v.files {
		f := &v.files[i]
		if f.inUse && f.mount == m {
			m.Backend.Close(f.fsHandle)
			*f = openFile{}
		}
	}

	if err := m.Backend.Unmount(m); err != nil {
		return err
	}
	m.Mounted = false
	v.mounts[idx] = nil
	return nil
}

// findMount selects the mount whose MountPoint is the longest
// path-boundary prefix of norm (spec.md §4.4 "Mount resolution"), and
// returns the mount-relative path ("/" if the path equals the mount
// point exactly).
func (v *VFS) findMount(norm string) (*Mount, string, error) {
	var best *Mount
	bestLen := -1
	for _, m := range v.mounts {
		if m == nil {
			continue
		}
		mp := m.MountPoint
		matches := mp == "/" || norm == mp || strings.HasPrefix(norm, mp+"/")
		if matches && len(mp) > bestLen {
			best = m
			bestLen = len(mp)
		}
	}
	if best == nil {
		return nil, "", kerr.New(kerr.NotMounted, norm)
	}
	rel := strings.TrimPrefix(norm, best.MountPoint)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		rel = "/"
	} else {
		rel = "/" + rel
	}
	return best, rel, nil
}

func (v *VFS) cwdLocked() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cwd
}

// Resolve normalises path against the current cwd and finds its owning
// mount, returning the mount-relative path.
func (v *VFS) Resolve(path string) (*Mount, string, error) {
	norm, err := NormalizePath(v.cwdLocked(), path)
	if err != nil {
		return nil, "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.findMount(norm)
}

func (v *VFS) allocHandle() (int, error) {
	for i := range v.files {
		if !v.files[i].inUse {
			return i, nil
		}
	}
	return -1, kerr.New(kerr.NoSpace, "handle table full")
}

// Open resolves path, allocates a global handle slot, and invokes the
// owning backend's Open. On backend failure the slot is released
// (spec.md §4.4 "Open semantics").
func (v *VFS) Open(path string) (int, error) {
	mount, rel, err := v.Resolve(path)
	if err != nil {
		return -1, err
	}

	v.mu.Lock()
	idx, err := v.allocHandle()
	if err != nil {
		v.mu.Unlock()
		return -1, err
	}
	v.files[idx] = openFile{mount: mount, inUse: true}
	v.mu.Unlock()

	fh, err := mount.Backend.Open(mount, rel)
	if err != nil {
		v.mu.Lock()
		v.files[idx] = openFile{}
		v.mu.Unlock()
		return -1, err
	}

	v.mu.Lock()
	v.files[idx].fsHandle = fh
	v.mu.Unlock()
	return idx, nil
}

func (v *VFS) slot(fd int) (*openFile, error) {
	if fd < 0 || fd >= MaxOpenFiles {
		return nil, kerr.New(kerr.InvalidPath, "bad file descriptor")
	}
	v.mu.Lock()
	f := &v.files[fd]
	inUse := f.inUse
	v.mu.Unlock()
	if !inUse {
		return nil, kerr.New(kerr.NotFound, "file descriptor not open")
	}
	return f, nil
}

// Read delegates to the owning backend and advances the handle's
// position as a courtesy aggregate (spec.md §4.4).
func (v *VFS) Read(fd int, buf []byte) (int, error) {
	f, err := v.slot(fd)
	if err != nil {
		return -1, err
	}
	n, err := f.mount.Backend.Read(f.fsHandle, buf)
	if err != nil {
		return -1, err
	}
	v.mu.Lock()
	f.position += uint32(n)
	v.mu.Unlock()
	return n, nil
}

// Write delegates to the owning backend and advances position.
func (v *VFS) Write(fd int, buf []byte) (int, error) {
	f, err := v.slot(fd)
	if err != nil {
		return -1, err
	}
	n, err := f.mount.Backend.Write(f.fsHandle, buf)
	if err != nil {
		return -1, err
	}
	v.mu.Lock()
	f.position += uint32(n)
	v.mu.Unlock()
	return n, nil
}

// Seek delegates to the backend and updates the aggregate position.
func (v *VFS) Seek(fd int, position uint32) error {
	f, err := v.slot(fd)
	if err != nil {
		return err
	}
	if err := f.mount.Backend.Seek(f.fsHandle, position); err != nil {
		return err
	}
	v.mu.Lock()
	f.position = position
	v.mu.Unlock()
	return nil
}

// Close releases fd's handle table slot after notifying the backend.
func (v *VFS) Close(fd int) error {
	f, err := v.slot(fd)
	if err != nil {
		return err
	}
	f.mount.Backend.Close(f.fsHandle)
	v.mu.Lock()
	v.files[fd] = openFile{}
	v.mu.Unlock()
	return nil
}

// Readdir, Mkdir, Rmdir, Create, Remove, and Stat all resolve path then
// delegate straight to the owning backend.

func (v *VFS) Readdir(path string) ([]Dirent, error) {
	mount, rel, err := v.Resolve(path)
	if err != nil {
		return nil, err
	}
	return mount.Backend.Readdir(mount, rel)
}

func (v *VFS) Mkdir(path string) error {
	mount, rel, err := v.Resolve(path)
	if err != nil {
		return err
	}
	return mount.Backend.Mkdir(mount, rel)
}

func (v *VFS) Rmdir(path string) error {
	mount, rel, err := v.Resolve(path)
	if err != nil {
		return err
	}
	return mount.Backend.Rmdir(mount, rel)
}

func (v *VFS) Create(path string) error {
	mount, rel, err := v.Resolve(path)
	if err != nil {
		return err
	}
	return mount.Backend.Create(mount, rel)
}

func (v *VFS) Remove(path string) error {
	mount, rel, err := v.Resolve(path)
	if err != nil {
		return err
	}
	return mount.Backend.Remove(mount, rel)
}

func (v *VFS) Stat(path string) (Dirent, error) {
	mount, rel, err := v.Resolve(path)
	if err != nil {
		return Dirent{}, err
	}
	return mount.Backend.Stat(mount, rel)
}

// Chdir normalises p, verifies it names a directory via Stat, and
// installs it as the process-wide cwd.
func (v *VFS) Chdir(p string) error {
	norm, err := NormalizePath(v.cwdLocked(), p)
	if err != nil {
		return err
	}
	info, err := v.Stat(norm)
	if err != nil {
		return err
	}
	if info.Type != TypeDirectory {
		return kerr.New(kerr.InvalidPath, norm+" is not a directory")
	}
	v.mu.Lock()
	v.cwd = norm
	v.mu.Unlock()
	return nil
}

// Getcwd returns the current working directory.
func (v *VFS) Getcwd() string {
	return v.cwdLocked()
}

// ListMounts returns the active mounts in slot order, for `mount`/`lspci`
// style shell introspection.
func (v *VFS) ListMounts() []*Mount {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*Mount, 0, MaxMounts)
	for _, m := range v.mounts {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
