package elf

import (
	"sync"

	"github.com/antpln/continuumos/kernel/process"
)

// KernelSymbol is one entry in the kernel-exported symbol table spec.md
// §4.8 step 6 resolves SHN_UNDEF references against: either a plain data
// value, or a registered Go trampoline standing in for a well-known
// entry point (hello_entry, shell_entry, editor_entry) per the
// Host-process re-implementation stance.
type KernelSymbol struct {
	Name       string
	Address    uint32
	Trampoline process.Entry
}

// SymbolTable is the kernel's global exported-symbol table. One instance
// is shared across every Load call in a running kernel.
type SymbolTable struct {
	mu        sync.Mutex
	byName    map[string]KernelSymbol
	byAddress map[uint32]KernelSymbol
	nextAddr  uint32
}

// NewSymbolTable returns an empty table. Addresses are handed out from a
// synthetic arena starting above any plausible loaded-object size so
// kernel symbols and object-local section addresses never collide.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName:    map[string]KernelSymbol{},
		byAddress: map[uint32]KernelSymbol{},
		nextAddr:  0x10000000,
	}
}

// RegisterData exports a plain data symbol at a freshly assigned
// synthetic address and returns it.
func (t *SymbolTable) RegisterData(name string, value uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr := t.nextAddr
	t.nextAddr += 4
	s := KernelSymbol{Name: name, Address: addr}
	// value is not stored; only the synthetic address is recorded, and
	// it is what relocations see.
	_ = value
	t.byName[name] = s
	t.byAddress[addr] = s
	return addr
}

// RegisterFunc exports name as an executable kernel trampoline: a
// well-known process.Entry invoked when the ELF loader spawns a process
// whose entry_symbol resolves to this name.
func (t *SymbolTable) RegisterFunc(name string, fn process.Entry) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr := t.nextAddr
	t.nextAddr += 4
	s := KernelSymbol{Name: name, Address: addr, Trampoline: fn}
	t.byName[name] = s
	t.byAddress[addr] = s
	return addr
}

// Resolve looks up a kernel-exported symbol by name.
func (t *SymbolTable) Resolve(name string) (KernelSymbol, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byName[name]
	return s, ok
}

// TrampolineAt returns the Go entry registered at addr, if any.
func (t *SymbolTable) TrampolineAt(addr uint32) (process.Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byAddress[addr]
	if !ok || s.Trampoline == nil {
		return nil, false
	}
	return s.Trampoline, true
}
