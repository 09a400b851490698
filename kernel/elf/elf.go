// Package elf implements spec.md §4.8's relocatable ELF application
// loader: ET_REL, EM_386, ELF32 objects only. It parses the section and
// symbol tables by hand (no debug/elf: that package targets linked,
// loadable binaries and has no notion of resolving SHN_UNDEF against a
// kernel-exported symbol table), places SHF_ALLOC sections in a synthetic
// address arena, and applies R_386_32/R_386_PC32 relocations against it.
package elf

import "encoding/binary"

const (
	magic0, magic1, magic2, magic3 = 0x7F, 'E', 'L', 'F'

	classELF32   = 1
	dataLittle   = 1
	typeRel      = 1 // ET_REL
	machine386   = 3 // EM_386

	ehdrSize = 52
	shdrSize = 40
	symSize  = 16
	relSize  = 8
)

// Section types (sh_type).
const (
	shtNull     = 0
	shtProgBits = 1
	shtSymTab   = 2
	shtStrTab   = 3
	shtRel      = 9
	shtNoBits   = 8
)

// Section flags (sh_flags).
const shfAlloc = 0x2

// Special section indices (st_shndx).
const (
	shnUndef = 0x0000
	shnAbs   = 0xFFF1
)

// Relocation types (ELF32_R_TYPE).
const (
	rNone = 0
	r32   = 1
	rPC32 = 2
)

// ehdr is the fields of Elf32_Ehdr this loader needs.
type ehdr struct {
	class, data, eType         byte
	machine                    uint16
	shoff                      uint32
	shentsize, shnum, shstrndx uint16
}

func parseEhdr(b []byte) (ehdr, bool) {
	if len(b) < ehdrSize {
		return ehdr{}, false
	}
	if b[0] != magic0 || b[1] != magic1 || b[2] != magic2 || b[3] != magic3 {
		return ehdr{}, false
	}
	e := ehdr{
		class:     b[4],
		data:      b[5],
		eType:     byte(binary.LittleEndian.Uint16(b[16:18])),
		machine:   binary.LittleEndian.Uint16(b[18:20]),
		shoff:     binary.LittleEndian.Uint32(b[32:36]),
		shentsize: binary.LittleEndian.Uint16(b[46:48]),
		shnum:     binary.LittleEndian.Uint16(b[48:50]),
		shstrndx:  binary.LittleEndian.Uint16(b[50:52]),
	}
	return e, true
}

// shdr is Elf32_Shdr.
type shdr struct {
	name      uint32
	sType     uint32
	flags     uint32
	addr      uint32
	offset    uint32
	size      uint32
	link      uint32
	info      uint32
	addralign uint32
	entsize   uint32
}

func parseShdr(b []byte) shdr {
	return shdr{
		name:      binary.LittleEndian.Uint32(b[0:4]),
		sType:     binary.LittleEndian.Uint32(b[4:8]),
		flags:     binary.LittleEndian.Uint32(b[8:12]),
		addr:      binary.LittleEndian.Uint32(b[12:16]),
		offset:    binary.LittleEndian.Uint32(b[16:20]),
		size:      binary.LittleEndian.Uint32(b[20:24]),
		link:      binary.LittleEndian.Uint32(b[24:28]),
		info:      binary.LittleEndian.Uint32(b[28:32]),
		addralign: binary.LittleEndian.Uint32(b[32:36]),
		entsize:   binary.LittleEndian.Uint32(b[36:40]),
	}
}

// sym is Elf32_Sym.
type sym struct {
	name  uint32
	value uint32
	size  uint32
	info  byte
	other byte
	shndx uint16
}

func parseSym(b []byte) sym {
	return sym{
		name:  binary.LittleEndian.Uint32(b[0:4]),
		value: binary.LittleEndian.Uint32(b[4:8]),
		size:  binary.LittleEndian.Uint32(b[8:12]),
		info:  b[12],
		other: b[13],
		shndx: binary.LittleEndian.Uint16(b[14:16]),
	}
}

// rel is Elf32_Rel.
type rel struct {
	offset uint32
	info   uint32
}

func parseRel(b []byte) rel {
	return rel{
		offset: binary.LittleEndian.Uint32(b[0:4]),
		info:   binary.LittleEndian.Uint32(b[4:8]),
	}
}

func (r rel) symIndex() uint32 { return r.info >> 8 }
func (r rel) relType() uint32  { return r.info & 0xFF }

// cstr reads a NUL-terminated string starting at off within tab.
func cstr(tab []byte, off uint32) string {
	if int(off) >= len(tab) {
		return ""
	}
	end := off
	for int(end) < len(tab) && tab[end] != 0 {
		end++
	}
	return string(tab[off:end])
}

// nextPow2 rounds v up to the next power of two, with a floor of 1.
func nextPow2(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	p := uint32(1)
	for p < v {
		p <<= 1
	}
	return p
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func leUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func putLeUint32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}
