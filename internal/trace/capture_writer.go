package trace

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CaptureWriter serializes capture frames. It is the inverse of
// DecodeCapture and exists for synthetic captures and tests; production
// captures come from the instrumentation layer.
type CaptureWriter struct {
	w   io.Writer
	err error
}

// NewCaptureWriter writes the capture header and returns the writer.
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	cw := &CaptureWriter{w: w}
	cw.write(captureMagic[:])
	cw.write(uint32(CaptureVersion))
	return cw
}

// Err returns the first write error, if any.
func (cw *CaptureWriter) Err() error { return cw.err }

func (cw *CaptureWriter) write(v any) {
	if cw.err != nil {
		return
	}
	if err := binary.Write(cw.w, binary.LittleEndian, v); err != nil {
		cw.err = fmt.Errorf("trace: write capture: %w", err)
	}
}

// Binary appends a binary-registration frame.
func (cw *CaptureWriter) Binary(cubinID uint32, symbolPCs []uint64, path string) {
	cw.write(uint8(EventBinary))
	cw.write(cubinID)
	cw.write(uint32(len(symbolPCs)))
	cw.write(symbolPCs)
	cw.write(uint16(len(path)))
	cw.write([]byte(path))
}

// MemoryRegister appends a memory-registration frame.
func (cw *CaptureWriter) MemoryRegister(start, end, hostOpID, memoryID uint64) {
	cw.write(uint8(EventMemoryRegister))
	cw.write([]uint64{start, end, hostOpID, memoryID})
}

// MemoryUnregister appends a memory-unregistration frame.
func (cw *CaptureWriter) MemoryUnregister(start, end, hostOpID uint64) {
	cw.write(uint8(EventMemoryUnregister))
	cw.write([]uint64{start, end, hostOpID})
}

// Kernel appends a kernel frame with the buffer's first HeadIndex records.
func (cw *CaptureWriter) Kernel(cpuThread, cubinID uint32, kernelID, hostOpID uint64, buf *Buffer) {
	cw.write(uint8(EventKernel))
	cw.write(cpuThread)
	cw.write(cubinID)
	cw.write(kernelID)
	cw.write(hostOpID)
	cw.write(buf.HeadIndex)
	for i := uint32(0); i < buf.HeadIndex && int(i) < len(buf.Records); i++ {
		cw.writeRecord(&buf.Records[i])
	}
}

func (cw *CaptureWriter) writeRecord(rec *Record) {
	cw.write(rec.Flags)
	cw.write(rec.Active)
	cw.write(rec.FlatBlockID)
	cw.write(rec.FlatThreadID)
	cw.write(rec.PC)
	cw.write(rec.Size)
	cw.write(uint32(0)) // padding
	cw.write(rec.Address[:])
	for j := 0; j < WarpSize; j++ {
		cw.write(rec.Value[j][:])
	}
}
