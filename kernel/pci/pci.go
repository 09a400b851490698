// Package pci implements spec.md §4.10's PCI enumerator: bus scanning
// through a simulated configuration-space mechanism, a bounded device
// cache, and per-process listeners filtered by (vendor, device) that
// receive DEVICE_ADDED/DEVICE_READY/INTERRUPT events.
//
// Grounded on the original's kernel/pci.cpp: pci_read_config_dword's
// 0xCF8/0xCFC address-mechanism bit layout (kept as ConfigSpace's
// contract even though this repository never touches real I/O ports —
// spec.md's "External interfaces" names this mechanism explicitly), the
// bus 0..255/device 0..31/function 0..(multifunction?8:1) scan order,
// the MAX_PCI_DEVICES=64 cache bound, and the listener registration
// behavior (immediate DEVICE_ADDED replay for existing matches, 0xFFFF
// wildcard matching).
package pci

import (
	"fmt"
	"sync"

	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/process"
)

// MaxDevices bounds the device cache (the original's MAX_PCI_DEVICES).
const MaxDevices = 64

// MaxListeners bounds registered process listeners (MAX_PCI_LISTENERS).
const MaxListeners = 16

// RegVendorID and friends are PCI config-space register byte offsets;
// readWord/readByte fetch the 4-byte-aligned dword that contains each one
// and shift the field out of it.
const (
	RegVendorID      = 0x00
	RegDeviceID      = 0x02
	RegClass         = 0x0B
	RegSubclass      = 0x0A
	RegProgIF        = 0x09
	RegRevisionID    = 0x08
	RegHeaderType    = 0x0E
	RegInterruptLine = 0x3C
	RegInterruptPin  = 0x3D
	RegBAR0          = 0x10
)

const vendorIDAbsent = 0xFFFF

// ConfigSpace is the HAL seam for the classic 0xCF8/0xCFC PCI
// configuration mechanism (spec.md §6): one 32-bit dword read/write per
// (bus, device, function, 4-byte-aligned offset). A real kernel would
// implement this with outl/inl against ports 0xCF8/0xCFC; this
// repository's tests and cmd/continuumctl supply a simulated topology
// instead.
type ConfigSpace interface {
	ReadConfigDword(bus, device, function uint8, offset uint8) uint32
}

// Device is one discovered PCI function (the original's pci_device_t).
type Device struct {
	Bus, Device, Function uint8
	VendorID, DeviceID    uint16
	ClassCode, Subclass   uint8
	ProgIF, RevisionID    uint8
	HeaderType            uint8
	InterruptLine         uint8
	InterruptPin          uint8
	BAR                   [6]uint32
}

type listener struct {
	proc     *process.Process
	vendorID uint16
	deviceID uint16
}

// Bus enumerates and caches PCI devices and dispatches hotplug-style
// events to registered process listeners (the original's global
// pci_devices/pci_listeners tables plus pci_scan_bus/pci_init).
type Bus struct {
	mu        sync.Mutex
	cfg       ConfigSpace
	log       *kserial.Logger
	devices   []Device
	listeners []listener
}

// New constructs a Bus reading through cfg.
func New(cfg ConfigSpace, log *kserial.Logger) *Bus {
	return &Bus{cfg: cfg, log: log}
}

func readWord(cfg ConfigSpace, bus, device, function, offset uint8) uint16 {
	dword := cfg.ReadConfigDword(bus, device, function, offset&0xFC)
	shift := (offset & 2) * 8
	return uint16(dword >> shift)
}

func readByte(cfg ConfigSpace, bus, device, function, offset uint8) uint8 {
	dword := cfg.ReadConfigDword(bus, device, function, offset&0xFC)
	shift := (offset & 3) * 8
	return uint8(dword >> shift)
}

func deviceExists(cfg ConfigSpace, bus, device, function uint8) bool {
	return readWord(cfg, bus, device, function, RegVendorID) != vendorIDAbsent
}

func readDeviceInfo(cfg ConfigSpace, bus, device, function uint8) Device {
	d := Device{Bus: bus, Device: device, Function: function}
	d.VendorID = readWord(cfg, bus, device, function, RegVendorID)
	d.DeviceID = readWord(cfg, bus, device, function, RegDeviceID)
	d.ClassCode = readByte(cfg, bus, device, function, RegClass)
	d.Subclass = readByte(cfg, bus, device, function, RegSubclass)
	d.ProgIF = readByte(cfg, bus, device, function, RegProgIF)
	d.RevisionID = readByte(cfg, bus, device, function, RegRevisionID)
	d.HeaderType = readByte(cfg, bus, device, function, RegHeaderType)
	d.InterruptLine = readByte(cfg, bus, device, function, RegInterruptLine)
	d.InterruptPin = readByte(cfg, bus, device, function, RegInterruptPin)
	for i := 0; i < 6; i++ {
		d.BAR[i] = cfg.ReadConfigDword(bus, device, function, uint8(RegBAR0+i*4))
	}
	return d
}

// ScanBus rescans every bus/device/function, replacing the cache (the
// original's pci_scan_bus). Scanning stops early, logging a warning,
// once MaxDevices is reached.
func (b *Bus) ScanBus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = b.devices[:0]

	for bus := 0; bus < 256; bus++ {
		for device := 0; device < 32; device++ {
			if !deviceExists(b.cfg, uint8(bus), uint8(device), 0) {
				continue
			}
			headerType := readByte(b.cfg, uint8(bus), uint8(device), 0, RegHeaderType)
			maxFunctions := 1
			if headerType&0x80 != 0 {
				maxFunctions = 8
			}
			for function := 0; function < maxFunctions; function++ {
				if !deviceExists(b.cfg, uint8(bus), uint8(device), uint8(function)) {
					continue
				}
				if len(b.devices) >= MaxDevices {
					if b.log != nil {
						b.log.Warn(fmt.Sprintf("pci: device cache full at %d entries, truncating scan", MaxDevices))
					}
					return
				}
				b.devices = append(b.devices, readDeviceInfo(b.cfg, uint8(bus), uint8(device), uint8(function)))
			}
		}
	}
}

// Init resets listeners and performs the initial scan (the original's
// pci_init).
func (b *Bus) Init() {
	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
	b.ScanBus()
	if b.log != nil {
		b.log.Info(fmt.Sprintf("pci: found %d device(s)", b.DeviceCount()))
	}
}

// DeviceCount reports how many devices are cached.
func (b *Bus) DeviceCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.devices)
}

// Devices returns a snapshot of the cached device table, in scan order
// (the original's pci_list_devices iteration order).
func (b *Bus) Devices() []Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Device, len(b.devices))
	copy(out, b.devices)
	return out
}

// FindDevice returns the first cached device matching (vendorID,
// deviceID), or an error if none matches (the original's
// pci_find_device).
func (b *Bus) FindDevice(vendorID, deviceID uint16) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.VendorID == vendorID && d.DeviceID == deviceID {
			return d, nil
		}
	}
	return Device{}, kerr.New(kerr.NotFound, "pci: no matching device")
}

// FindDeviceByClass returns the first cached device matching
// (classCode, subclass), or an error if none matches.
func (b *Bus) FindDeviceByClass(classCode, subclass uint8) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.ClassCode == classCode && d.Subclass == subclass {
			return d, nil
		}
	}
	return Device{}, kerr.New(kerr.NotFound, "pci: no matching device")
}

func matches(l listener, d Device) bool {
	return (l.vendorID == vendorIDAbsent || l.vendorID == d.VendorID) &&
		(l.deviceID == vendorIDAbsent || l.deviceID == d.DeviceID)
}

func (b *Bus) deliver(p *process.Process, d Device, eventType int) {
	p.PushEvent(event.NewPCI(event.PCIEvent{
		Bus: d.Bus, Device: d.Device, Function: d.Function,
		VendorID: d.VendorID, DeviceID: d.DeviceID,
		ClassCode: d.ClassCode, Subclass: d.Subclass,
		EventType: eventType,
	}))
}

// RegisterListener registers proc to receive PCI events matching
// (vendorID, deviceID) — 0xFFFF wildcards either field — re-registering
// an already-listening process updates its filter in place. Existing
// cached devices matching the new filter are immediately delivered as
// DEVICE_ADDED (the original's pci_register_process_listener).
func (b *Bus) RegisterListener(proc *process.Process, vendorID, deviceID uint16) error {
	if proc == nil {
		return kerr.New(kerr.InvalidPath, "pci: nil listener process")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.listeners {
		if b.listeners[i].proc == proc {
			b.listeners[i].vendorID = vendorID
			b.listeners[i].deviceID = deviceID
			b.notifyExistingLocked(proc, vendorID, deviceID)
			return nil
		}
	}

	if len(b.listeners) >= MaxListeners {
		if b.log != nil {
			b.log.Warn(fmt.Sprintf("pci: too many listeners, dropping registration for %s", proc.Name))
		}
		return kerr.New(kerr.NoSpace, "pci: listener table full")
	}

	b.listeners = append(b.listeners, listener{proc: proc, vendorID: vendorID, deviceID: deviceID})
	b.notifyExistingLocked(proc, vendorID, deviceID)
	return nil
}

func (b *Bus) notifyExistingLocked(proc *process.Process, vendorID, deviceID uint16) {
	l := listener{vendorID: vendorID, deviceID: deviceID}
	for _, d := range b.devices {
		if matches(l, d) {
			b.deliver(proc, d, event.PCIDeviceAdded)
		}
	}
}

// UnregisterListener removes proc from the listener table, if present
// (the original's pci_unregister_process_listener).
func (b *Bus) UnregisterListener(proc *process.Process) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.listeners {
		if b.listeners[i].proc == proc {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *Bus) sendToListeners(d Device, eventType int) {
	for _, l := range b.listeners {
		if matches(l, d) {
			b.deliver(l.proc, d, eventType)
		}
	}
}

// NotifyDeviceReady dispatches DEVICE_READY to matching listeners for
// the device at (bus, device, function), if cached (the original's
// pci_notify_device_ready).
func (b *Bus) NotifyDeviceReady(bus, device, function uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.Bus == bus && d.Device == device && d.Function == function {
			b.sendToListeners(d, event.PCIDeviceReady)
			return
		}
	}
}

// NotifyInterrupt dispatches INTERRUPT to matching listeners for the
// device at (bus, device, function), if cached (the original's
// pci_notify_interrupt).
func (b *Bus) NotifyInterrupt(bus, device, function uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.Bus == bus && d.Device == device && d.Function == function {
			b.sendToListeners(d, event.PCIInterrupt)
			return
		}
	}
}
