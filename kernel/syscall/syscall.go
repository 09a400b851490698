// Package syscall implements spec.md §4.3's uniform kernel entry point:
// every process-facing operation funnels through one Number-tagged
// Dispatch call instead of a direct method call on each subsystem,
// faithful to "entered via software interrupt, uniform entry" even
// though the Go caller is an ordinary function rather than int 0x80.
//
// Grounded on the original's kernel/syscalls.h + syscalls.cpp: the
// sys_vfs_*/sys_graphics_*/sys_scheduler_*/sys_pci_* naming and
// coverage is kept verbatim as the Number enum below, demultiplexed
// through one switch the way syscall_dispatch(registers_t*) does for
// its interrupt-number argument.
package syscall

import (
	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/elf"
	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/hooks"
	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/pci"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/antpln/continuumos/kernel/scheduler"
	"github.com/antpln/continuumos/kernel/vfs"
)

// Number is the syscall surface's dispatch tag, one entry per
// sys_* function spec.md §4.3 names.
type Number int

const (
	Yield Number = iota + 1
	YieldForEvent
	StartProcess
	Exit
	PollEvent
	WaitEvent

	VFSOpen
	VFSRead
	VFSWrite
	VFSSeek
	VFSClose
	VFSCreate
	VFSRemove
	VFSMkdir
	VFSRmdir
	VFSReaddir
	VFSStat
	VFSNormalizePath

	GraphicsEnsureWindow
	GraphicsPutChar
	GraphicsPresent
	GraphicsSetCursor
	GraphicsGetCursor
	GraphicsColumns
	GraphicsRows
	FramebufferAvailable

	GUICommand

	SchedulerGetPID
	SchedulerSetForeground
	SchedulerGetForeground

	PCIRegisterListener
	PCIUnregisterListener
)

// GUI command kinds for the GUICommand syscall (spec.md §4.3 "GUI:
// gui_command(kind, arg0, arg1, flags)").
const (
	GUIRedraw = iota + 1
	GUISetTerminalOrigin
	GUIRequestNewWindow
)

// Args bundles every syscall's possible arguments. Only the fields
// relevant to Number are read; this mirrors the original's single
// `registers_t*` carrying whichever general-purpose registers a given
// syscall number interprets as its argument list.
type Args struct {
	Path string
	Buf  []byte
	FD   int
	Pos  uint32

	Name        string
	Entry       process.Entry
	Speculative bool
	StackSize   uint32
	ExitStatus  int

	Hook *hooks.Hook

	Row, Col int
	Ch       byte
	Attr     uint8
	Active   bool

	GUIKind  int
	GUIArg0  int
	GUIArg1  int
	GUIFlags uint32

	TargetPID int

	VendorID uint16
	DeviceID uint16

	// ELFPath/EntrySymbol/InitSymbol/InitArg are StartProcess's
	// alternate form: spawn by loading and relocating an object from
	// the VFS instead of registering a bare Go entry closure directly
	// (spec.md §4.8's loader feeding §4.3's start_process).
	ELFPath     string
	EntrySymbol string
	InitSymbol  string
	InitArg     string
}

// Result is what Dispatch returns on success: the original's syscalls
// return a plain int (byte count, pid, bool-as-0/1); PollEvent/
// WaitEvent additionally hand back the dequeued event and a handful of
// calls report a string or dirent payload no bare int can carry.
type Result struct {
	Value   int
	Event   event.Event
	HasSwap bool // set for PollEvent/WaitEvent: whether Event is populated
	Path    string
	Dirents []vfs.Dirent
	Dirent  vfs.Dirent
	Row     int
	Col     int
	Cursor  bool // GraphicsGetCursor's bool return
}

// Kernel bundles every subsystem Dispatch demultiplexes into, the Go
// shape of the global statics syscalls.cpp reaches for directly
// (scheduler_current_process(), the VFS singleton, and so on).
type Kernel struct {
	VFS         *vfs.VFS
	Sched       *scheduler.Table
	Compositor  *gfx.Compositor
	PCI         *pci.Bus
	SymbolTable *elf.SymbolTable
	Log         *kserial.Logger

	nextPID int
}

// New constructs a Kernel wiring the given subsystems. Any may be nil;
// syscalls that need a missing subsystem return kerr.Error.
func New(v *vfs.VFS, sched *scheduler.Table, comp *gfx.Compositor, bus *pci.Bus, symtab *elf.SymbolTable, log *kserial.Logger) *Kernel {
	if log == nil {
		log = kserial.NewDiscard()
	}
	return &Kernel{VFS: v, Sched: sched, Compositor: comp, PCI: bus, SymbolTable: symtab, Log: log, nextPID: 1}
}

// Dispatch is the uniform entry point: proc is the calling process
// (nil only for syscalls that make no sense without one, which then
// fail). It returns a Result on success or one of kerr's taxonomy
// codes on failure — propagated unchanged from whichever subsystem
// produced it (spec.md §7 "syscalls surface them as the integer
// return").
func (k *Kernel) Dispatch(proc *process.Process, num Number, args Args) (Result, error) {
	switch num {
	case Yield:
		return k.sysYield(proc)
	case YieldForEvent:
		return k.sysYieldForEvent(proc, args)
	case StartProcess:
		return k.sysStartProcess(args)
	case Exit:
		return k.sysExit(proc, args)
	case PollEvent:
		return k.sysPollEvent(proc)
	case WaitEvent:
		return k.sysWaitEvent(proc)

	case VFSOpen:
		return k.sysVFSOpen(args)
	case VFSRead:
		return k.sysVFSRead(args)
	case VFSWrite:
		return k.sysVFSWrite(args)
	case VFSSeek:
		return k.sysVFSSeek(args)
	case VFSClose:
		return k.sysVFSClose(args)
	case VFSCreate:
		return k.sysVFSCreate(args)
	case VFSRemove:
		return k.sysVFSRemove(args)
	case VFSMkdir:
		return k.sysVFSMkdir(args)
	case VFSRmdir:
		return k.sysVFSRmdir(args)
	case VFSReaddir:
		return k.sysVFSReaddir(args)
	case VFSStat:
		return k.sysVFSStat(args)
	case VFSNormalizePath:
		return k.sysVFSNormalizePath(args)

	case GraphicsEnsureWindow:
		return k.sysEnsureWindow(proc, args)
	case GraphicsPutChar:
		return k.sysPutChar(proc, args)
	case GraphicsPresent:
		return k.sysPresent(proc)
	case GraphicsSetCursor:
		return k.sysSetCursor(proc, args)
	case GraphicsGetCursor:
		return k.sysGetCursor(proc)
	case GraphicsColumns:
		return Result{Value: gfx.Cols}, nil
	case GraphicsRows:
		return Result{Value: gfx.Rows}, nil
	case FramebufferAvailable:
		return k.sysFramebufferAvailable()

	case GUICommand:
		return k.sysGUICommand(proc, args)

	case SchedulerGetPID:
		return k.sysGetPID(proc)
	case SchedulerSetForeground:
		return k.sysSetForeground(args)
	case SchedulerGetForeground:
		return k.sysGetForeground()

	case PCIRegisterListener:
		return k.sysPCIRegisterListener(proc, args)
	case PCIUnregisterListener:
		return k.sysPCIUnregisterListener(proc)
	}
	return Result{}, kerr.New(kerr.Error, "unknown syscall number")
}

// --- Process (spec.md §4.1/§4.3) ---

func (k *Kernel) sysYield(proc *process.Process) (Result, error) {
	if k.Sched == nil {
		return Result{}, kerr.New(kerr.Error, "no scheduler")
	}
	k.Sched.YieldForEvent(proc, nil)
	return Result{}, nil
}

func (k *Kernel) sysYieldForEvent(proc *process.Process, args Args) (Result, error) {
	if k.Sched == nil {
		return Result{}, kerr.New(kerr.Error, "no scheduler")
	}
	k.Sched.YieldForEvent(proc, args.Hook)
	return Result{}, nil
}

// sysStartProcess implements spec.md §4.3's `start_process(name, entry,
// speculative, stack_size) → pid`. When args.ELFPath is set the process
// is spawned through the loader instead (spec.md §4.8), resolving
// EntrySymbol (and optional InitSymbol/InitArg) against SymbolTable.
func (k *Kernel) sysStartProcess(args Args) (Result, error) {
	if k.Sched == nil {
		return Result{}, kerr.New(kerr.Error, "no scheduler")
	}
	pid := k.nextPID
	k.nextPID++

	if args.ELFPath != "" {
		if k.VFS == nil || k.SymbolTable == nil {
			return Result{}, kerr.New(kerr.Error, "elf loader requires a vfs and symbol table")
		}
		res, err := elf.Load(k.VFS, k.Sched, k.SymbolTable, k.Log, args.ELFPath, pid, args.EntrySymbol, args.InitSymbol, args.InitArg)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: res.Process.PID}, nil
	}

	stackSize := args.StackSize
	if stackSize == 0 {
		stackSize = 8192
	}
	proc := process.New(pid, args.Name, args.Entry, args.Speculative, stackSize)
	if err := k.Sched.Add(proc); err != nil {
		return Result{}, err
	}
	return Result{Value: pid}, nil
}

func (k *Kernel) sysExit(proc *process.Process, args Args) (Result, error) {
	if proc == nil {
		return Result{}, kerr.New(kerr.Error, "no current process")
	}
	proc.Kill()
	if k.Compositor != nil {
		k.Compositor.OnProcessExit(proc.PID)
	}
	if k.Sched != nil {
		k.Sched.Remove(proc.PID)
	}
	return Result{Value: args.ExitStatus}, nil
}

func (k *Kernel) sysPollEvent(proc *process.Process) (Result, error) {
	if proc == nil {
		return Result{}, kerr.New(kerr.Error, "no current process")
	}
	ev, ok := proc.PopEvent()
	if !ok {
		return Result{Value: 0}, nil
	}
	return Result{Value: 1, Event: ev, HasSwap: true}, nil
}

// sysWaitEvent implements spec.md §5's "wait_event... parks [the
// process] on SIGNAL(own_pid)". The actual suspension is the caller's
// responsibility (Dispatch has no access to a coroutine's yield point);
// this syscall only drains one event if already pending, or installs the
// SIGNAL(own_pid) hook and returns so the caller can yield.
func (k *Kernel) sysWaitEvent(proc *process.Process) (Result, error) {
	if proc == nil {
		return Result{}, kerr.New(kerr.Error, "no current process")
	}
	if ev, ok := proc.PopEvent(); ok {
		return Result{Event: ev, HasSwap: true}, nil
	}
	if k.Sched != nil {
		k.Sched.YieldForEvent(proc, &hooks.Hook{Kind: hooks.Signal, Value: uint64(proc.PID)})
	}
	return Result{HasSwap: false}, nil
}

// --- VFS (spec.md §4.4) ---

func (k *Kernel) sysVFSOpen(args Args) (Result, error) {
	if k.VFS == nil {
		return Result{}, kerr.New(kerr.NotMounted, "no vfs")
	}
	fd, err := k.VFS.Open(args.Path)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: fd}, nil
}

func (k *Kernel) sysVFSRead(args Args) (Result, error) {
	n, err := k.VFS.Read(args.FD, args.Buf)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: n}, nil
}

func (k *Kernel) sysVFSWrite(args Args) (Result, error) {
	n, err := k.VFS.Write(args.FD, args.Buf)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: n}, nil
}

func (k *Kernel) sysVFSSeek(args Args) (Result, error) {
	if err := k.VFS.Seek(args.FD, args.Pos); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysVFSClose(args Args) (Result, error) {
	if err := k.VFS.Close(args.FD); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysVFSCreate(args Args) (Result, error) {
	if err := k.VFS.Create(args.Path); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysVFSRemove(args Args) (Result, error) {
	if err := k.VFS.Remove(args.Path); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysVFSMkdir(args Args) (Result, error) {
	if err := k.VFS.Mkdir(args.Path); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysVFSRmdir(args Args) (Result, error) {
	if err := k.VFS.Rmdir(args.Path); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysVFSReaddir(args Args) (Result, error) {
	entries, err := k.VFS.Readdir(args.Path)
	if err != nil {
		return Result{}, err
	}
	return Result{Dirents: entries}, nil
}

func (k *Kernel) sysVFSStat(args Args) (Result, error) {
	info, err := k.VFS.Stat(args.Path)
	if err != nil {
		return Result{}, err
	}
	return Result{Dirent: info}, nil
}

func (k *Kernel) sysVFSNormalizePath(args Args) (Result, error) {
	norm, err := vfs.NormalizePath(k.VFS.Getcwd(), args.Path)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: norm}, nil
}

// --- Graphics (spec.md §4.3/§4.7) ---

// windowFor resolves proc's window, lazily assigning one through
// ensure_window semantics for callers that read before writing.
func (k *Kernel) windowFor(proc *process.Process) (*gfx.Window, error) {
	if k.Compositor == nil {
		return nil, kerr.New(kerr.Error, "no compositor")
	}
	if proc == nil {
		return nil, kerr.New(kerr.Error, "no current process")
	}
	if w, ok := proc.Window.(*gfx.Window); ok && w != nil {
		return w, nil
	}
	w := k.Compositor.RequestNewWindow(proc.PID, proc.Name)
	proc.Window = w
	return w, nil
}

func (k *Kernel) sysEnsureWindow(proc *process.Process, args Args) (Result, error) {
	_, err := k.windowFor(proc)
	if err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysPutChar(proc *process.Process, args Args) (Result, error) {
	w, err := k.windowFor(proc)
	if err != nil {
		return Result{}, err
	}
	w.PutChar(args.Row, args.Col, args.Ch, args.Attr)
	return Result{}, nil
}

func (k *Kernel) sysPresent(proc *process.Process) (Result, error) {
	if k.Compositor == nil {
		return Result{}, kerr.New(kerr.Error, "no compositor")
	}
	k.Compositor.DrawWindows()
	return Result{}, nil
}

func (k *Kernel) sysSetCursor(proc *process.Process, args Args) (Result, error) {
	w, err := k.windowFor(proc)
	if err != nil {
		return Result{}, err
	}
	w.SetCursor(args.Row, args.Col)
	w.CursorVisible = args.Active
	return Result{}, nil
}

func (k *Kernel) sysGetCursor(proc *process.Process) (Result, error) {
	w, err := k.windowFor(proc)
	if err != nil {
		return Result{Cursor: false}, err
	}
	row, col := w.GetCursor()
	return Result{Row: row, Col: col, Cursor: true}, nil
}

func (k *Kernel) sysFramebufferAvailable() (Result, error) {
	return Result{Value: boolToInt(k.Compositor != nil)}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- GUI (spec.md §4.3) ---

func (k *Kernel) sysGUICommand(proc *process.Process, args Args) (Result, error) {
	if k.Compositor == nil {
		return Result{}, kerr.New(kerr.Error, "no compositor")
	}
	switch args.GUIKind {
	case GUIRedraw:
		k.Compositor.DrawWindows()
	case GUISetTerminalOrigin:
		if proc == nil {
			return Result{}, kerr.New(kerr.Error, "no current process")
		}
		if err := k.Compositor.SetActiveWindowOrigin(proc.PID, args.GUIArg0, args.GUIArg1); err != nil {
			return Result{}, err
		}
	case GUIRequestNewWindow:
		if proc == nil {
			return Result{}, kerr.New(kerr.Error, "no current process")
		}
		w := k.Compositor.RequestNewWindow(proc.PID, proc.Name)
		proc.Window = w
	default:
		return Result{}, kerr.New(kerr.InvalidPath, "unknown gui_command kind")
	}
	return Result{}, nil
}

// --- Scheduler (spec.md §4.1/§4.3) ---

func (k *Kernel) sysGetPID(proc *process.Process) (Result, error) {
	if proc == nil {
		return Result{Value: -1}, nil
	}
	return Result{Value: proc.PID}, nil
}

func (k *Kernel) sysSetForeground(args Args) (Result, error) {
	if k.Sched == nil {
		return Result{}, kerr.New(kerr.Error, "no scheduler")
	}
	k.Sched.SetForeground(args.TargetPID)
	if k.Compositor != nil {
		k.Compositor.ActivateProcess(args.TargetPID)
	}
	return Result{}, nil
}

func (k *Kernel) sysGetForeground() (Result, error) {
	if k.Sched == nil {
		return Result{Value: 0}, nil
	}
	return Result{Value: k.Sched.Foreground()}, nil
}

// --- PCI (spec.md §4.3/§4.10) ---

func (k *Kernel) sysPCIRegisterListener(proc *process.Process, args Args) (Result, error) {
	if k.PCI == nil {
		return Result{}, kerr.New(kerr.Error, "no pci bus")
	}
	if proc == nil {
		return Result{}, kerr.New(kerr.Error, "no current process")
	}
	if err := k.PCI.RegisterListener(proc, args.VendorID, args.DeviceID); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (k *Kernel) sysPCIUnregisterListener(proc *process.Process) (Result, error) {
	if k.PCI == nil {
		return Result{}, kerr.New(kerr.Error, "no pci bus")
	}
	if proc == nil {
		return Result{}, kerr.New(kerr.Error, "no current process")
	}
	k.PCI.UnregisterListener(proc)
	return Result{}, nil
}
