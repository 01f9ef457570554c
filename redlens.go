// Package redlens analyzes GPU kernel execution traces for value redundancy.
// It correlates instrumented memory accesses with the originating
// instructions and the touched allocations, canonicalizes access values to a
// configurable precision, and reports spatial redundancy (one PC producing
// the same value across many addresses) and temporal redundancy (one thread
// re-accessing an address with an unchanged value).
package redlens

import (
	"errors"
	"sync"

	"redlens/internal/binary"
	"redlens/internal/canon"
	"redlens/internal/memory"
	"redlens/internal/trace"
)

var ErrNotRegisteredCallback = errors.New("redlens: callback not registered")

// AnalysisType selects a redundancy detector.
type AnalysisType uint32

const (
	AnalysisSpatialRedundancy AnalysisType = iota + 1
	AnalysisTemporalRedundancy
)

func (t AnalysisType) String() string {
	switch t {
	case AnalysisSpatialRedundancy:
		return "spatial"
	case AnalysisTemporalRedundancy:
		return "temporal"
	default:
		return "unknown"
	}
}

// AccessType distinguishes the read and write sides of a detector.
type AccessType uint32

const (
	AccessRead AccessType = iota + 1
	AccessWrite
)

func (t AccessType) String() string {
	if t == AccessWrite {
		return "write"
	}
	return "read"
}

// LogFunc receives every analyzed buffer together with its access tally.
type LogFunc func(kernelID uint64, buf *trace.Buffer, tally trace.Tally)

// RecordFunc receives reduced redundancy views at flush time.
type RecordFunc func(cubinID uint32, kernelID uint64, data *RecordData)

// Analyzer is the top-level handle. All API entry points are safe for
// concurrent use; per-kernel accumulation state is sharded by the
// caller-supplied CPU thread id.
type Analyzer struct {
	registry  *binary.Registry
	snapshots *memory.SnapshotStore

	configMu      sync.Mutex
	enabled       map[AnalysisType]struct{}
	degF32        int
	degF64        int
	outputPath    string
	logFn         LogFunc
	recordFn      RecordFunc
	pcViewsLimit  int
	memViewsLimit int

	kernelMu sync.Mutex
	kernels  map[uint32]map[uint64]*kernelState

	opMu        sync.Mutex
	minHostOpID map[uint32]uint64
}

// New returns an analyzer with full precision and no detectors enabled.
func New() *Analyzer {
	return &Analyzer{
		registry:    binary.NewRegistry(),
		snapshots:   memory.NewSnapshotStore(),
		enabled:     make(map[AnalysisType]struct{}),
		degF32:      canon.FloatDigits,
		degF64:      canon.DoubleDigits,
		kernels:     make(map[uint32]map[uint64]*kernelState),
		minHostOpID: make(map[uint32]uint64),
	}
}

// SetOutput records the directory detailed reports are written under.
func (a *Analyzer) SetOutput(path string) {
	a.configMu.Lock()
	a.outputPath = path
	a.configMu.Unlock()
}

// Output returns the configured output directory.
func (a *Analyzer) Output() string {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	return a.outputPath
}

// SetPrecision selects the canonicalization level applied to every access
// value from the next Analyze on.
func (a *Analyzer) SetPrecision(level canon.Level) error {
	degF32, degF64, err := canon.Degrees(level)
	if err != nil {
		return err
	}
	a.configMu.Lock()
	a.degF32 = degF32
	a.degF64 = degF64
	a.configMu.Unlock()
	return nil
}

// Enable turns on a detector. Effective on the next Analyze.
func (a *Analyzer) Enable(kind AnalysisType) {
	a.configMu.Lock()
	a.enabled[kind] = struct{}{}
	a.configMu.Unlock()
}

// Disable turns off a detector.
func (a *Analyzer) Disable(kind AnalysisType) {
	a.configMu.Lock()
	delete(a.enabled, kind)
	a.configMu.Unlock()
}

// SetLogCallback registers the per-buffer sink.
func (a *Analyzer) SetLogCallback(fn LogFunc) {
	a.configMu.Lock()
	a.logFn = fn
	a.configMu.Unlock()
}

// SetRecordCallback registers the flush sink and the view limits:
// pcViewsLimit caps the views per detector side, memViewsLimit caps the
// views kept per entry of the on-disk flush dump.
func (a *Analyzer) SetRecordCallback(fn RecordFunc, pcViewsLimit, memViewsLimit int) {
	a.configMu.Lock()
	a.recordFn = fn
	a.pcViewsLimit = pcViewsLimit
	a.memViewsLimit = memViewsLimit
	a.configMu.Unlock()
}

// RegisterBinary parses the companion instruction listing for the binary at
// path and publishes it under cubinID. symbolPCs supplies the runtime PC of
// each function index.
func (a *Analyzer) RegisterBinary(cubinID uint32, symbolPCs []uint64, path string) error {
	return a.registry.Register(cubinID, symbolPCs, path)
}

// RegisterBinaryCache defers registration until the binary is first needed.
func (a *Analyzer) RegisterBinaryCache(cubinID uint32, symbolPCs []uint64, path string) error {
	return a.registry.RegisterCache(cubinID, symbolPCs, path)
}

// UnregisterBinary drops the binary for cubinID.
func (a *Analyzer) UnregisterBinary(cubinID uint32) error {
	return a.registry.Unregister(cubinID)
}

// RegisterMemory records a device allocation [start, end) at hostOpID.
func (a *Analyzer) RegisterMemory(start, end, hostOpID, memoryID uint64) error {
	return a.snapshots.Register(memory.Range{Start: start, End: end}, hostOpID, memoryID)
}

// UnregisterMemory removes the allocation starting at start as of hostOpID.
func (a *Analyzer) UnregisterMemory(start, end, hostOpID uint64) error {
	return a.snapshots.Unregister(memory.Range{Start: start, End: end}, hostOpID)
}

// Begin resets the garbage-collection horizon for cpuThread.
func (a *Analyzer) Begin(cpuThread uint32) {
	a.opMu.Lock()
	a.minHostOpID[cpuThread] = 0
	a.opMu.Unlock()
}

// End garbage-collects memory snapshots older than the smallest host op id
// cpuThread analyzed since Begin.
func (a *Analyzer) End(cpuThread uint32) {
	a.opMu.Lock()
	horizon := a.minHostOpID[cpuThread]
	a.opMu.Unlock()
	if horizon != 0 {
		a.snapshots.GarbageCollect(horizon)
	}
}

func (a *Analyzer) noteHostOpID(cpuThread uint32, hostOpID uint64) {
	a.opMu.Lock()
	if seen := a.minHostOpID[cpuThread]; seen == 0 || hostOpID < seen {
		a.minHostOpID[cpuThread] = hostOpID
	}
	a.opMu.Unlock()
}

// analysisConfig is the per-call copy of the mutable configuration, taken
// once so one Analyze sees a consistent view.
type analysisConfig struct {
	spatial  bool
	temporal bool
	degF32   int
	degF64   int
	logFn    LogFunc
}

func (a *Analyzer) snapshotConfig() analysisConfig {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	_, spatial := a.enabled[AnalysisSpatialRedundancy]
	_, temporal := a.enabled[AnalysisTemporalRedundancy]
	return analysisConfig{
		spatial:  spatial,
		temporal: temporal,
		degF32:   a.degF32,
		degF64:   a.degF64,
		logFn:    a.logFn,
	}
}

// kernelFor returns the accumulation state for (cpuThread, kernelID),
// creating it on first use. The inner map is owned by cpuThread and needs no
// lock.
func (a *Analyzer) kernelFor(cpuThread uint32, kernelID uint64, cubinID uint32) *kernelState {
	a.kernelMu.Lock()
	threadKernels := a.kernels[cpuThread]
	if threadKernels == nil {
		threadKernels = make(map[uint64]*kernelState)
		a.kernels[cpuThread] = threadKernels
	}
	a.kernelMu.Unlock()

	k := threadKernels[kernelID]
	if k == nil {
		k = newKernelState(kernelID, cubinID)
		threadKernels[kernelID] = k
	}
	return k
}

// detachKernels removes and returns every kernel state owned by cpuThread.
func (a *Analyzer) detachKernels(cpuThread uint32) map[uint64]*kernelState {
	a.kernelMu.Lock()
	defer a.kernelMu.Unlock()
	threadKernels := a.kernels[cpuThread]
	delete(a.kernels, cpuThread)
	return threadKernels
}
