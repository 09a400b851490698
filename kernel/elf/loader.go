package elf

import (
	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/antpln/continuumos/kernel/scheduler"
	"github.com/antpln/continuumos/kernel/vfs"
)

const defaultStackSize = 8192

// objectArenaBase is where loaded-object section addresses start. Kept far
// below SymbolTable's kernel-symbol arena (0x10000000) so the two address
// spaces never collide when relocations compare them.
const objectArenaBase = 0x00001000

// Result is what a successful Load produces: the spawned process plus the
// section arena, kept around so tests can assert on relocation output
// (spec.md §8 testable property 8) without re-parsing the object.
type Result struct {
	Process     *process.Process
	Sections    map[int][]byte
	SectionAddr map[int]uint32
}

// Load implements spec.md §4.8 end to end: reads path from v, parses it as
// an ET_REL/EM_386/ELF32 object, places SHF_ALLOC sections in a synthetic
// arena, applies R_386_32/R_386_PC32 relocations, runs .ctors, resolves
// entrySymbol (and optional initSymbol, whose trampoline runs once on a
// throwaway process with len(initArg) in EAX; the bytes of initArg are
// not passed) and spawns a process at entrySymbol's registered trampoline.
//
// Every failure path logs through log and returns a non-nil error; partial
// section allocations are not unwound on failure, matching the original's
// "acceptable for this kernel; not fatal because each boot is fresh."
func Load(v *vfs.VFS, sched *scheduler.Table, symtab *SymbolTable, log *kserial.Logger, path string, pid int, entrySymbol, initSymbol, initArg string) (*Result, error) {
	if log == nil {
		log = kserial.NewDiscard()
	}

	info, err := v.Stat(path)
	if err != nil {
		log.Error("elf: stat failed", kserial.KV("path", path), kserial.KVErr(err))
		return nil, err
	}
	if info.Size == 0 {
		log.Error("elf: empty object", kserial.KV("path", path))
		return nil, kerr.New(kerr.Error, "elf: empty object "+path)
	}

	data, err := readFile(v, path)
	if err != nil {
		log.Error("elf: read failed", kserial.KV("path", path), kserial.KVErr(err))
		return nil, err
	}

	eh, ok := parseEhdr(data)
	if !ok {
		log.Error("elf: bad magic", kserial.KV("path", path))
		return nil, kerr.New(kerr.Error, "elf: bad magic in "+path)
	}
	if eh.eType != typeRel || eh.machine != machine386 || int(eh.shentsize) != shdrSize {
		log.Error("elf: unsupported object type", kserial.KV("path", path),
			kserial.KV("type", eh.eType), kserial.KV("machine", eh.machine))
		return nil, kerr.New(kerr.Error, "elf: only ET_REL/EM_386 objects are supported")
	}

	shdrs := make([]shdr, eh.shnum)
	for i := range shdrs {
		off := eh.shoff + uint32(i)*shdrSize
		shdrs[i] = parseShdr(data[off : off+shdrSize])
	}
	var shstrtab []byte
	if int(eh.shstrndx) < len(shdrs) {
		s := shdrs[eh.shstrndx]
		shstrtab = data[s.offset : s.offset+s.size]
	}

	sections := map[int][]byte{}
	sectionAddr := map[int]uint32{}
	cursor := uint32(objectArenaBase)
	for i, s := range shdrs {
		if s.flags&shfAlloc == 0 {
			continue
		}
		align := nextPow2(s.addralign)
		cursor = alignUp(cursor, align)
		buf := make([]byte, s.size)
		if s.sType == shtProgBits {
			copy(buf, data[s.offset:s.offset+s.size])
		}
		sections[i] = buf
		sectionAddr[i] = cursor
		cursor += s.size
	}

	var symtabData, symStrTab []byte
	symtabFound := -1
	for i, s := range shdrs {
		if s.sType == shtSymTab {
			symtabFound = i
			symtabData = data[s.offset : s.offset+s.size]
			link := shdrs[s.link]
			symStrTab = data[link.offset : link.offset+link.size]
			break
		}
	}
	if symtabFound == -1 {
		log.Error("elf: no SHT_SYMTAB section", kserial.KV("path", path))
		return nil, kerr.New(kerr.Error, "elf: object has no symbol table")
	}
	nsyms := len(symtabData) / symSize
	syms := make([]sym, nsyms)
	for i := range syms {
		syms[i] = parseSym(symtabData[i*symSize : (i+1)*symSize])
	}

	resolveSymbolValue := func(s sym) (uint32, error) {
		switch {
		case s.shndx == shnUndef:
			name := cstr(symStrTab, s.name)
			ks, ok := symtab.Resolve(name)
			if !ok {
				return 0, kerr.New(kerr.NotFound, "undefined symbol "+name)
			}
			return ks.Address, nil
		case s.shndx == shnAbs:
			return s.value, nil
		default:
			base, ok := sectionAddr[int(s.shndx)]
			if !ok {
				return 0, kerr.New(kerr.Error, "symbol references non-SHF_ALLOC section")
			}
			return base + s.value, nil
		}
	}

	for i, target := range shdrs {
		if target.sType != shtRel {
			continue
		}
		targetSec := int(target.info)
		if targetSec >= len(shdrs) || shdrs[targetSec].flags&shfAlloc == 0 {
			continue
		}
		buf, ok := sections[targetSec]
		if !ok {
			continue
		}
		relData := data[shdrs[i].offset : shdrs[i].offset+shdrs[i].size]
		for off := 0; off+relSize <= len(relData); off += relSize {
			r := parseRel(relData[off : off+relSize])
			if int(r.symIndex()) >= len(syms) {
				log.Error("elf: relocation symbol index out of range", kserial.KV("path", path))
				return nil, kerr.New(kerr.Error, "elf: bad relocation symbol index")
			}
			symValue, err := resolveSymbolValue(syms[r.symIndex()])
			if err != nil {
				log.Error("elf: unresolved relocation", kserial.KVErr(err))
				return nil, err
			}
			loc := r.offset
			if int(loc)+4 > len(buf) {
				return nil, kerr.New(kerr.Error, "elf: relocation location out of section bounds")
			}
			locationAddr := sectionAddr[targetSec] + loc
			addend := leUint32(buf[loc : loc+4])
			switch r.relType() {
			case rNone:
			case r32:
				putLeUint32(buf[loc:loc+4], symValue+addend)
			case rPC32:
				putLeUint32(buf[loc:loc+4], symValue+addend-locationAddr)
			default:
				log.Error("elf: unsupported relocation type", kserial.KV("type", r.relType()))
				return nil, kerr.New(kerr.Error, "elf: unsupported relocation type")
			}
		}
	}

	runCtors(shdrs, shstrtab, sections, sectionAddr, symtab, log)

	findLocal := func(name string) (sym, bool) {
		for _, s := range syms {
			if cstr(symStrTab, s.name) == name {
				return s, true
			}
		}
		return sym{}, false
	}

	if _, ok := findLocal(entrySymbol); !ok {
		log.Error("elf: entry symbol not found in object", kserial.KV("symbol", entrySymbol))
		return nil, kerr.New(kerr.NotFound, "entry symbol "+entrySymbol+" not defined in object")
	}
	entryKS, ok := symtab.Resolve(entrySymbol)
	if !ok || entryKS.Trampoline == nil {
		log.Error("elf: entry symbol has no registered trampoline", kserial.KV("symbol", entrySymbol))
		return nil, kerr.New(kerr.NotFound, "entry symbol "+entrySymbol+" has no registered trampoline")
	}

	if initSymbol != "" {
		if _, ok := findLocal(initSymbol); !ok {
			log.Error("elf: init symbol not found in object", kserial.KV("symbol", initSymbol))
			return nil, kerr.New(kerr.NotFound, "init symbol "+initSymbol+" not defined in object")
		}
		initKS, ok := symtab.Resolve(initSymbol)
		if !ok || initKS.Trampoline == nil {
			log.Error("elf: init symbol has no registered trampoline", kserial.KV("symbol", initSymbol))
			return nil, kerr.New(kerr.NotFound, "init symbol "+initSymbol+" has no registered trampoline")
		}
		initProc := process.New(-1, "init:"+path, initKS.Trampoline, false, defaultStackSize)
		initProc.Current.EAX = uint32(len(initArg))
		initKS.Trampoline(initProc)
	}

	proc := process.New(pid, path, entryKS.Trampoline, false, defaultStackSize)
	if err := sched.Add(proc); err != nil {
		log.Error("elf: scheduler table full", kserial.KVErr(err))
		return nil, err
	}

	log.Info("elf: loaded and spawned", kserial.KV("path", path), kserial.KV("pid", pid), kserial.KV("entry", entrySymbol))
	return &Result{Process: proc, Sections: sections, SectionAddr: sectionAddr}, nil
}

// runCtors locates .ctors (array of 4-byte function-pointer addresses) and
// invokes each in order via its registered trampoline (spec.md §4.8 step
// 7). An address with no registered trampoline is skipped and logged —
// not fatal, matching the algorithm's general leniency on this step.
func runCtors(shdrs []shdr, shstrtab []byte, sections map[int][]byte, sectionAddr map[int]uint32, symtab *SymbolTable, log *kserial.Logger) {
	for i, s := range shdrs {
		if cstr(shstrtab, s.name) != ".ctors" {
			continue
		}
		buf, ok := sections[i]
		if !ok {
			continue
		}
		for off := 0; off+4 <= len(buf); off += 4 {
			addr := leUint32(buf[off : off+4])
			fn, ok := symtab.TrampolineAt(addr)
			if !ok {
				log.Warn("elf: .ctors entry has no registered trampoline", kserial.KV("addr", addr))
				continue
			}
			fn(nil)
		}
		return
	}
}

// readFile reads path's full contents via repeated vfs.Read calls until
// EOF, matching spec.md §4.8 step 2's loop-until-EOF phrasing.
func readFile(v *vfs.VFS, path string) ([]byte, error) {
	fd, err := v.Open(path)
	if err != nil {
		return nil, err
	}
	defer v.Close(fd)

	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := v.Read(fd, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
		if n < len(buf) {
			break
		}
	}
	return out, nil
}
