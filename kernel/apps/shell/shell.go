// Package shell implements the interactive line-mode command processor:
// a 16-entry history ring, arrow/backspace-driven line editing, and a
// table of built-in commands dispatched against this kernel's own VFS,
// PCI bus, and block devices (spec.md §8 scenarios S1-S3 need a real
// backing store to exercise, not a hand-built fake).
//
// Grounded on the original's kernel/shell.h + shell.cpp: ShellState's
// field layout survives below as the Shell struct, shell_handle_key's
// up/down/left/right/backspace/enter dispatch keeps the same shape, and
// the commands[] table keeps every command's name, description, and
// behavior. Unlike the original, line rendering goes straight through
// gfx.Window.WriteText/SetCursor (terminal_windows.cpp was already a
// kernel-internal helper the original called without a syscall
// indirection), while process lifecycle and VFS access go through
// kernel/syscall's uniform Dispatch, since those are the operations
// spec.md's syscall surface actually names.
package shell

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/apps/editor"
	"github.com/antpln/continuumos/kernel/blockdev"
	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/antpln/continuumos/kernel/syscall"
	"github.com/antpln/continuumos/kernel/timer"
	"github.com/antpln/continuumos/kernel/vfs"
	"github.com/antpln/continuumos/kernel/vfs/fat32"
)

// HistorySize is the original's SHELL_HISTORY_SIZE.
const HistorySize = 16

// BufferSize is the original's SHELL_BUFFER_SIZE, the longest command
// line the input buffer accepts.
const BufferSize = 256

var defaultAttr = gfx.PackAttr(7, 0) // light grey on black, matches terminal.make_color's default

type commandFunc func(sh *Shell, args string)

type command struct {
	Name        string
	Description string
	Fn          commandFunc
}

// Shell is one running shell process's state, the Go shape of the
// original's file-static ShellState plus the globals shell.cpp kept
// alongside it (g_shell_process, the commands table's runtime context).
type Shell struct {
	kernel *syscall.Kernel
	proc   *process.Process

	disks map[uint8]blockdev.Device
	timer *timer.Timer
	log   *kserial.Logger

	buffer []byte
	cursor int
	length int

	history      [HistorySize]string
	historyCount int
	historyNav   int // -1 = not navigating

	inputEnabled  bool
	promptVisible bool
	promptCache   string

	promptRow, promptCol int
	cursorRow, cursorCol int
	renderedChars        int
}

// NewEntry returns a process.Entry that runs a fresh Shell against k.
// disks maps block device IDs to their backing device (lsblk lists every
// entry; disktest and mount fat32 use device 0); tmr, if non-nil, backs the uptime
// command. Either may be nil/empty when no disk or timer is wired.
func NewEntry(k *syscall.Kernel, disks map[uint8]blockdev.Device, tmr *timer.Timer) process.Entry {
	return func(p *process.Process) {
		sh := &Shell{
			kernel:     k,
			proc:       p,
			disks:      disks,
			timer:      tmr,
			log:        k.Log,
			historyNav: -1,
		}
		sh.run()
	}
}

func (sh *Shell) run() {
	k := sh.kernel
	if sh.proc != nil {
		k.Dispatch(nil, syscall.SchedulerSetForeground, syscall.Args{TargetPID: sh.proc.PID})
	}
	sh.init()

	for {
		res, err := k.Dispatch(sh.proc, syscall.PollEvent, syscall.Args{})
		if err != nil {
			return
		}
		if !res.HasSwap {
			res, err = k.Dispatch(sh.proc, syscall.WaitEvent, syscall.Args{})
			if err != nil {
				return
			}
			if !res.HasSwap {
				sh.parkUntilWoken()
				continue
			}
		}
		sh.handleEvent(res.Event)
	}
}

// parkUntilWoken busy-waits for the scheduler to clear this shell's
// WaitHook (installed by the WaitEvent dispatch above), standing in for
// the original's real suspend/resume through the interrupt return path
// (spec.md's host-process re-implementation stance: Dispatch itself
// never blocks, so the caller's own loop is the yield point).
func (sh *Shell) parkUntilWoken() {
	for sh.proc != nil && sh.proc.WaitHook != nil {
		time.Sleep(2 * time.Millisecond)
	}
}

func (sh *Shell) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.Process:
		switch ev.Process.Code {
		case event.FocusLost:
			sh.setInputEnabled(false)
		case event.FocusGained:
			sh.setInputEnabled(true)
			if !sh.promptVisible {
				sh.printPrompt()
			}
		}
	case event.Keyboard:
		sh.handleKey(ev.Keyboard)
	}
}

func (sh *Shell) init() {
	sh.inputEnabled = true
	sh.historyNav = -1
	sh.println("Welcome to nutshell!")
	sh.printPrompt()
}

// --- window plumbing ---

func (sh *Shell) window() (*gfx.Window, error) {
	if _, err := sh.kernel.Dispatch(sh.proc, syscall.GraphicsEnsureWindow, syscall.Args{}); err != nil {
		return nil, err
	}
	w, _ := sh.proc.Window.(*gfx.Window)
	return w, nil
}

func (sh *Shell) present() {
	sh.kernel.Dispatch(sh.proc, syscall.GraphicsPresent, syscall.Args{})
}

// write appends text at the window's current cursor, advancing and
// scrolling as needed.
func (sh *Shell) write(text string) {
	w, err := sh.window()
	if err != nil {
		return
	}
	row, col := w.GetCursor()
	row, col = w.WriteText(row, col, text, defaultAttr)
	w.SetCursor(row, col)
	sh.present()
}

func (sh *Shell) println(text string) { sh.write(text + "\n") }
func (sh *Shell) printf(format string, args ...any) {
	sh.write(fmt.Sprintf(format, args...))
}

// advancePos mirrors shell_advance_position: move one cell right,
// wrapping to the next row at the grid's edge (clamped at the last row,
// since this window has no scrollback to advance into mid-render).
func advancePos(row, col int) (int, int) {
	col++
	if col >= gfx.Cols {
		col = 0
		if row+1 < gfx.Rows {
			row++
		}
	}
	return row, col
}

// printPrompt renders "nutshell <cwd>> " at the window's current cursor
// and resets the input line, mirroring shell_print_prompt.
func (sh *Shell) printPrompt() {
	prompt := fmt.Sprintf("nutshell %s> ", sh.cwd())
	sh.promptCache = prompt
	sh.cursor = 0
	sh.length = 0
	sh.buffer = sh.buffer[:0]
	sh.renderedChars = 0

	w, err := sh.window()
	if err != nil {
		return
	}
	row, col := w.GetCursor()
	sh.promptRow, sh.promptCol = row, col
	w.WriteText(row, col, prompt, defaultAttr)
	sh.promptVisible = true
	sh.renderInput()
}

// renderInput rewrites the prompt plus the in-progress command line from
// promptRow/promptCol, padding over any characters left behind by a
// shorter edit, then repositions the caret (shell_render_input).
func (sh *Shell) renderInput() {
	if !sh.promptVisible {
		return
	}
	w, err := sh.window()
	if err != nil {
		return
	}

	row, col := sh.promptRow, sh.promptCol
	put := func(ch byte) {
		w.PutChar(row, col, ch, defaultAttr)
		row, col = advancePos(row, col)
	}
	for i := 0; i < len(sh.promptCache); i++ {
		put(sh.promptCache[i])
	}
	for i := 0; i < sh.length; i++ {
		put(sh.buffer[i])
	}

	total := len(sh.promptCache) + sh.length
	if sh.renderedChars > total {
		for diff := sh.renderedChars - total; diff > 0; diff-- {
			put(' ')
		}
	}
	sh.renderedChars = total

	caretRow, caretCol := sh.promptRow, sh.promptCol
	for i := 0; i < len(sh.promptCache)+sh.cursor; i++ {
		caretRow, caretCol = advancePos(caretRow, caretCol)
	}
	sh.cursorRow, sh.cursorCol = caretRow, caretCol
	w.SetCursor(caretRow, caretCol)
	w.CursorVisible = true
	sh.present()
}

func (sh *Shell) setInputEnabled(enabled bool) {
	sh.inputEnabled = enabled
	w, err := sh.window()
	if err != nil {
		return
	}
	if !enabled {
		sh.promptVisible = false
		w.SetCursor(sh.cursorRow, sh.cursorCol)
		w.CursorVisible = false
		sh.present()
		return
	}
	sh.promptVisible = true
	sh.renderInput()
}

// --- history ring ---

func (sh *Shell) historyAdd(cmd string) {
	if cmd == "" {
		return
	}
	sh.history[sh.historyCount%HistorySize] = cmd
	sh.historyCount++
	sh.historyNav = -1
}

func (sh *Shell) historyPrev() (string, bool) {
	if sh.historyCount == 0 {
		return "", false
	}
	if sh.historyNav == -1 {
		sh.historyNav = sh.historyCount - 1
	} else if sh.historyNav > 0 {
		sh.historyNav--
	}
	return sh.history[sh.historyNav%HistorySize], true
}

// historyNext reports (next, true) when navigation should overwrite the
// input line with next ("" means clear it, matching shell_history_next
// reaching the end of the ring), or (_, false) when not navigating.
func (sh *Shell) historyNext() (string, bool) {
	if sh.historyCount == 0 || sh.historyNav == -1 {
		return "", false
	}
	if sh.historyNav < sh.historyCount-1 {
		sh.historyNav++
		return sh.history[sh.historyNav%HistorySize], true
	}
	sh.historyNav = -1
	return "", true
}

func (sh *Shell) historyReset() { sh.historyNav = -1 }

// --- key handling ---

func (sh *Shell) handleKey(ke event.KeyboardEvent) {
	if ke.Release || !sh.inputEnabled {
		return
	}
	switch {
	case ke.UpArrow:
		if prev, ok := sh.historyPrev(); ok {
			sh.setBuffer(prev)
		}
	case ke.DownArrow:
		if next, ok := sh.historyNext(); ok {
			sh.setBuffer(next)
		}
	case ke.LeftArrow:
		if sh.cursor > 0 {
			sh.cursor--
			sh.renderInput()
		}
	case ke.RightArrow:
		if sh.cursor < sh.length {
			sh.cursor++
			sh.renderInput()
		}
	case ke.Backspace:
		sh.backspace()
	case ke.Enter:
		sh.execute()
	default:
		if ke.ASCII != 0 && sh.length < BufferSize-1 {
			sh.insertChar(ke.ASCII)
		}
	}
}

func (sh *Shell) setBuffer(s string) {
	if len(s) > BufferSize-1 {
		s = s[:BufferSize-1]
	}
	sh.buffer = []byte(s)
	sh.length = len(sh.buffer)
	sh.cursor = sh.length
	sh.renderInput()
}

func (sh *Shell) backspace() {
	if sh.cursor == 0 {
		return
	}
	sh.buffer = append(sh.buffer[:sh.cursor-1], sh.buffer[sh.cursor:]...)
	sh.cursor--
	sh.length--
	sh.renderInput()
}

func (sh *Shell) insertChar(c byte) {
	sh.buffer = append(sh.buffer, 0)
	copy(sh.buffer[sh.cursor+1:], sh.buffer[sh.cursor:sh.length])
	sh.buffer[sh.cursor] = c
	sh.cursor++
	sh.length++
	sh.renderInput()
}

func (sh *Shell) execute() {
	cmd := string(sh.buffer[:sh.length])
	sh.write("\n")
	sh.historyAdd(cmd)
	sh.processCommand(cmd)

	sh.cursor, sh.length = 0, 0
	sh.buffer = sh.buffer[:0]
	sh.renderedChars = 0
	sh.historyReset()
	sh.promptVisible = false
	if sh.inputEnabled {
		sh.printPrompt()
	}
}

func (sh *Shell) processCommand(line string) {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	if name == "" {
		return
	}
	args = strings.TrimSpace(args)
	for _, c := range commandTable {
		if c.Name == name {
			c.Fn(sh, args)
			return
		}
	}
	sh.printf("Command not found: %s\n", name)
}

// --- path helpers shared by several commands ---

// cwd reports the VFS current directory by normalizing "." against it,
// since the syscall surface has no dedicated getcwd number.
func (sh *Shell) cwd() string {
	res, err := sh.kernel.Dispatch(nil, syscall.VFSNormalizePath, syscall.Args{Path: "."})
	if err != nil {
		return "/"
	}
	return res.Path
}

func (sh *Shell) resolvePath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	cwd := sh.cwd()
	if cwd == "/" {
		return "/" + p
	}
	return cwd + "/" + p
}

func parentDir(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// --- built-in commands ---

func cmdHelp(sh *Shell, args string) {
	sh.println("Available commands:")
	for _, c := range commandTable {
		sh.printf("  %s: %s\n", c.Name, c.Description)
	}
}

func cmdLs(sh *Shell, args string) {
	path := sh.cwd()
	if args != "" {
		path = sh.resolvePath(args)
	}
	res, err := sh.kernel.Dispatch(nil, syscall.VFSReaddir, syscall.Args{Path: path})
	if err != nil {
		sh.printf("ls: cannot access '%s': No such file or directory\n", path)
		return
	}
	names := make([]string, 0, len(res.Dirents))
	for _, d := range res.Dirents {
		if d.Type == vfs.TypeDirectory {
			names = append(names, d.Name+"/")
		} else {
			names = append(names, d.Name)
		}
	}
	sh.println(strings.Join(names, "  "))
}

func cmdCd(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: cd <dir>")
		return
	}
	path := sh.resolvePath(args)
	res, err := sh.kernel.Dispatch(nil, syscall.VFSStat, syscall.Args{Path: path})
	if err != nil {
		sh.printf("cd: No such file or directory '%s'\n", args)
		return
	}
	if res.Dirent.Type != vfs.TypeDirectory {
		sh.printf("cd: Not a directory '%s'\n", args)
		return
	}
	if err := sh.kernel.VFS.Chdir(path); err != nil {
		sh.printf("cd: Failed to change directory to '%s'\n", args)
	}
}

func cmdCat(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: cat <file>")
		return
	}
	path := sh.resolvePath(args)
	openRes, err := sh.kernel.Dispatch(nil, syscall.VFSOpen, syscall.Args{Path: path})
	if err != nil {
		sh.printf("cat: cannot open '%s': No such file\n", args)
		return
	}
	fd := openRes.Value
	buf := make([]byte, 256)
	for {
		readRes, err := sh.kernel.Dispatch(nil, syscall.VFSRead, syscall.Args{FD: fd, Buf: buf})
		if err != nil || readRes.Value <= 0 {
			break
		}
		sh.write(string(buf[:readRes.Value]))
	}
	sh.write("\n")
	sh.kernel.Dispatch(nil, syscall.VFSClose, syscall.Args{FD: fd})
}

func cmdTouch(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: touch <file>")
		return
	}
	path := sh.resolvePath(args)
	if _, err := sh.kernel.Dispatch(nil, syscall.VFSCreate, syscall.Args{Path: path}); err != nil {
		sh.printf("touch: cannot create '%s'\n", args)
		return
	}
	sh.printf("File '%s' created.\n", args)
}

func cmdMkdir(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: mkdir <dir>")
		return
	}
	path := sh.resolvePath(args)
	if _, err := sh.kernel.Dispatch(nil, syscall.VFSMkdir, syscall.Args{Path: path}); err != nil {
		sh.printf("mkdir: cannot create directory '%s'\n", args)
		return
	}
	sh.printf("Directory '%s' created.\n", args)
}

func cmdRm(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: rm <file>")
		return
	}
	path := sh.resolvePath(args)
	if _, err := sh.kernel.Dispatch(nil, syscall.VFSRemove, syscall.Args{Path: path}); err != nil {
		sh.printf("rm: cannot remove '%s'\n", args)
		return
	}
	sh.printf("File '%s' removed.\n", args)
}

func cmdRmdir(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: rmdir <dir>")
		return
	}
	path := sh.resolvePath(args)
	if _, err := sh.kernel.Dispatch(nil, syscall.VFSRmdir, syscall.Args{Path: path}); err != nil {
		sh.printf("rmdir: cannot remove directory '%s'\n", args)
		return
	}
	sh.printf("Directory '%s' removed.\n", args)
}

func cmdEcho(sh *Shell, args string) { sh.println(args) }

func cmdPwd(sh *Shell, args string) { sh.println(sh.cwd()) }

func cmdUptime(sh *Shell, args string) {
	if sh.timer == nil {
		sh.println("Uptime: unknown (no timer attached)")
		return
	}
	ms := sh.timer.Tick() * 1000 / uint64(sh.timer.Hz())
	sh.printf("Uptime: %d ms\n", ms)
}

func cmdHistory(sh *Shell, args string) {
	start := 0
	if sh.historyCount > HistorySize {
		start = sh.historyCount - HistorySize
	}
	for i := start; i < sh.historyCount; i++ {
		sh.printf("%d: %s\n", i+1, sh.history[i%HistorySize])
	}
}

func cmdEdit(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: edit <path>")
		return
	}
	combined := sh.resolvePath(args)
	normRes, err := sh.kernel.Dispatch(nil, syscall.VFSNormalizePath, syscall.Args{Path: combined})
	if err != nil {
		sh.printf("edit: failed to resolve path '%s'\n", combined)
		return
	}
	normalized := normRes.Path

	if stat, err := sh.kernel.Dispatch(nil, syscall.VFSStat, syscall.Args{Path: normalized}); err == nil && stat.Dirent.Type == vfs.TypeDirectory {
		sh.printf("edit: '%s' is a directory\n", normalized)
		return
	}

	parent := parentDir(normalized)
	parentStat, err := sh.kernel.Dispatch(nil, syscall.VFSStat, syscall.Args{Path: parent})
	if err != nil || parentStat.Dirent.Type != vfs.TypeDirectory {
		sh.printf("edit: parent directory '%s' not found\n", parent)
		return
	}

	entry := editor.NewEntry(sh.kernel, normalized)
	startRes, err := sh.kernel.Dispatch(nil, syscall.StartProcess, syscall.Args{
		Name: "editor", Entry: entry, StackSize: 8192,
	})
	if err != nil {
		sh.println("edit: failed to start editor process")
		return
	}
	sh.kernel.Dispatch(nil, syscall.SchedulerSetForeground, syscall.Args{TargetPID: startRes.Value})
	sh.setInputEnabled(false)
}

func cmdLsblk(sh *Shell, args string) {
	if len(sh.disks) == 0 {
		sh.println("No block devices registered.")
		return
	}
	ids := make([]int, 0, len(sh.disks))
	for id := range sh.disks {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		dev := sh.disks[uint8(id)]
		count, err := dev.SectorCount()
		if err != nil {
			sh.printf("disk%d: error: %v\n", id, err)
			continue
		}
		sh.printf("disk%d: %d sectors (%d bytes)\n", id, count, uint64(count)*blockdev.SectorSize)
	}
}

func cmdDisktest(sh *Shell, args string) {
	sh.println("Testing disk read...")
	dev, ok := sh.disks[0]
	if !ok {
		sh.println("Failed to read disk: no device 0 registered")
		return
	}
	buf := make([]byte, blockdev.SectorSize)
	if err := dev.ReadSectors(0, 1, buf); err != nil {
		sh.printf("Failed to read disk: %v\n", err)
		return
	}
	sh.println("Successfully read sector 0:")
	for i := 0; i < 64; i += 16 {
		sh.printf("\n%04x: ", i)
		for j := i; j < i+16; j++ {
			sh.printf("%02x ", buf[j])
		}
	}
	sh.write("\nAs text: ")
	for i := 0; i < 64; i++ {
		c := buf[i]
		if c < 32 || c >= 127 {
			c = '.'
		}
		sh.write(string(c))
	}
	sh.write("\n")
}

func cmdMount(sh *Shell, args string) {
	if args == "" {
		sh.println("Current mounts:")
		for _, m := range sh.kernel.VFS.ListMounts() {
			sh.printf("  %s (%s, device %d)\n", m.MountPoint, m.FSType, m.DeviceID)
		}
		sh.println("Usage: mount fat32 - Mount FAT32 from device 0 to /mnt/fat32")
		return
	}
	if args != "fat32" {
		sh.printf("Unknown filesystem type: %s\n", args)
		sh.println("Supported types: fat32")
		return
	}
	dev, ok := sh.disks[0]
	if !ok {
		sh.println("Failed to mount FAT32 filesystem: no device 0 registered")
		return
	}
	fs, err := fat32.Mount(dev, sh.log)
	if err != nil {
		sh.printf("Failed to mount FAT32 filesystem: %v\n", err)
		return
	}
	if err := sh.kernel.VFS.Mount("/mnt/fat32", vfs.FSFat32, 0, fs); err != nil {
		sh.printf("Failed to mount FAT32 filesystem: %v\n", err)
		return
	}
	sh.println("FAT32 filesystem mounted at /mnt/fat32")
}

func cmdUmount(sh *Shell, args string) {
	if args == "" {
		sh.println("Usage: umount <mountpoint>")
		return
	}
	if err := sh.kernel.VFS.Unmount(args); err != nil {
		sh.printf("Failed to unmount %s\n", args)
		return
	}
	sh.printf("Filesystem unmounted from %s\n", args)
}

func cmdFsinfo(sh *Shell, args string) {
	for _, m := range sh.kernel.VFS.ListMounts() {
		fs, ok := m.Backend.(*fat32.FS)
		if !ok {
			continue
		}
		info := fs.Info()
		sh.printf("=== FAT32 filesystem at %s ===\n", m.MountPoint)
		sh.printf("Bytes per sector:    %d\n", info.BytesPerSector)
		sh.printf("Sectors per cluster: %d\n", info.SectorsPerCluster)
		sh.printf("Total clusters:      %d\n", info.TotalClusters)
		sh.printf("Free clusters:       %d\n", info.FreeClusters)
		sh.printf("Root cluster:        %d\n", info.RootCluster)
		return
	}
	sh.println("No FAT32 filesystem mounted.")
}

// cmdMeminfo and cmdFree report host process memory via runtime.MemStats
// in place of the original's PhysicalMemoryManager/kernel-heap counters,
// which have no equivalent once the "kernel" is an ordinary host
// process (spec.md's host-process re-implementation stance).
func cmdMeminfo(sh *Shell, args string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	sh.println("")
	sh.println("=== Host Memory Information ===")
	sh.printf("Heap in use:         %d bytes (%d MB)\n", m.HeapInuse, m.HeapInuse/(1024*1024))
	sh.printf("Heap idle:           %d bytes\n", m.HeapIdle)
	sh.printf("Heap reserved:       %d bytes\n", m.HeapSys)
	sh.printf("Total from OS:       %d bytes (%d MB)\n", m.Sys, m.Sys/(1024*1024))
	sh.printf("Allocations:         %d\n", m.Mallocs)
	sh.printf("Frees:               %d\n", m.Frees)
	sh.printf("GC cycles:           %d\n", m.NumGC)
	sh.println("")
}

func cmdFree(sh *Shell, args string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	free := m.HeapSys - m.HeapInuse
	sh.println("            total        used        free")
	sh.printf("Mem:   %d  %d  %d\n", m.Sys, m.HeapInuse, free)
	sh.println("")
	pct := 0
	if m.Sys > 0 {
		pct = int(m.HeapInuse * 100 / m.Sys)
	}
	sh.printf("Memory usage: %d%% (heap in use / total from OS)\n", pct)
}

func cmdLspci(sh *Shell, args string) {
	if sh.kernel.PCI == nil {
		sh.println("No PCI bus attached.")
		return
	}
	devices := sh.kernel.PCI.Devices()
	if len(devices) == 0 {
		sh.println("No PCI devices found.")
		return
	}
	for _, d := range devices {
		sh.printf("%02x:%02x.%x  Class %02x:%02x  Vendor %04x Device %04x\n",
			d.Bus, d.Device, d.Function, d.ClassCode, d.Subclass, d.VendorID, d.DeviceID)
	}
}

var commandTable = []command{
	{"help", "Show available commands", cmdHelp},
	{"ls", "List directory contents", cmdLs},
	{"cd", "Change directory", cmdCd},
	{"cat", "Display file contents", cmdCat},
	{"touch", "Create a new file", cmdTouch},
	{"mkdir", "Create a new directory", cmdMkdir},
	{"rm", "Remove a file", cmdRm},
	{"rmdir", "Remove a directory", cmdRmdir},
	{"echo", "Print text", cmdEcho},
	{"pwd", "Print working directory", cmdPwd},
	{"uptime", "Show system uptime", cmdUptime},
	{"history", "Show command history", cmdHistory},
	{"edit", "Edit a file", cmdEdit},
	{"lsblk", "List block devices", cmdLsblk},
	{"disktest", "Test disk reading", cmdDisktest},
	{"mount", "Mount filesystem", cmdMount},
	{"umount", "Unmount filesystem", cmdUmount},
	{"fsinfo", "Show filesystem info", cmdFsinfo},
	{"meminfo", "Show detailed memory usage", cmdMeminfo},
	{"free", "Display memory usage summary", cmdFree},
	{"lspci", "List PCI devices", cmdLspci},
}
