package fast

import (
	"bytes"
	"io"
)

// The device page: every address at or above DevicePage is memory-mapped I/O.
const (
	DevicePage uint16 = 0xFE00

	AddrKBSR uint16 = 0xFE00
	AddrKBDR uint16 = 0xFE02
	AddrDSR  uint16 = 0xFE04
	AddrDDR  uint16 = 0xFE06
	AddrMCR  uint16 = 0xFFFE

	// MaxMemoryAddr is the highest address backed by plain memory.
	MaxMemoryAddr = DevicePage - 1

	StatusReady uint16 = 0x8000
)

// Device is a memory-mapped device register.
type Device uint8

const (
	DeviceNone Device = iota
	DeviceKBSR
	DeviceKBDR
	DeviceDSR
	DeviceDDR
	DeviceMCR
)

var deviceNames = [...]string{"none", "KBSR", "KBDR", "DSR", "DDR", "MCR"}

func (d Device) String() string {
	if int(d) < len(deviceNames) {
		return deviceNames[d]
	}
	return "unknown"
}

func (d Device) Address() uint16 {
	switch d {
	case DeviceKBSR:
		return AddrKBSR
	case DeviceKBDR:
		return AddrKBDR
	case DeviceDSR:
		return AddrDSR
	case DeviceDDR:
		return AddrDDR
	case DeviceMCR:
		return AddrMCR
	}
	return 0
}

// Writable reports whether stores to the register are allowed.
func (d Device) Writable() bool {
	return d == DeviceDDR
}

func IsDeviceAddress(addr uint16) bool {
	return addr >= DevicePage
}

// DeviceAt returns the register mapped at addr. ok is false for plain memory
// and for unmapped device-page addresses.
func DeviceAt(addr uint16) (d Device, ok bool) {
	switch addr {
	case AddrKBSR:
		return DeviceKBSR, true
	case AddrKBDR:
		return DeviceKBDR, true
	case AddrDSR:
		return DeviceDSR, true
	case AddrDDR:
		return DeviceDDR, true
	case AddrMCR:
		return DeviceMCR, true
	}
	return DeviceNone, false
}

// IOPort is the console the device registers are wired to.
type IOPort interface {
	// InputReady reports whether a keyboard byte is pending.
	InputReady() bool
	// ReadInput consumes the pending keyboard byte. ok is false when there is none.
	ReadInput() (b byte, ok bool)
	// WriteOutput emits one display byte.
	WriteOutput(b byte)
}

// BufferedPort serves keyboard input from a fixed byte stream and collects display output.
// Output is also copied to Sink when set.
type BufferedPort struct {
	input []byte
	pos   int

	output bytes.Buffer
	Sink   io.Writer
	err    error
}

var _ IOPort = (*BufferedPort)(nil)

func NewBufferedPort(input []byte, sink io.Writer) *BufferedPort {
	return &BufferedPort{input: input, Sink: sink}
}

func (p *BufferedPort) InputReady() bool {
	return p.pos < len(p.input)
}

func (p *BufferedPort) ReadInput() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	b := p.input[p.pos]
	p.pos++
	return b, true
}

func (p *BufferedPort) WriteOutput(b byte) {
	p.output.WriteByte(b)
	if p.Sink != nil && p.err == nil {
		_, p.err = p.Sink.Write([]byte{b})
	}
}

// Input returns the full keyboard stream.
func (p *BufferedPort) Input() []byte {
	return p.input
}

// Consumed returns the keyboard bytes read so far.
func (p *BufferedPort) Consumed() []byte {
	return p.input[:p.pos]
}

func (p *BufferedPort) Output() []byte {
	return p.output.Bytes()
}

// Err returns the first error the Sink produced.
func (p *BufferedPort) Err() error {
	return p.err
}
