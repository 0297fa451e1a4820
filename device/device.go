// Package device is the Device Model (component A): a catalog of compute
// and communication devices addressable by identifier, with five total
// lookups used by the Graph Builder. A missing key is a fatal
// configuration error, not a recoverable runtime condition.
package device

import "fmt"

// ID is a compute device's flat global identifier — the value that
// appears in a ParallelConfig's device-id vector, analogous to FlexFlow's
// flat gpu_id used to index into id_to_compute_device.
type ID int

// Kind distinguishes a compute device from a communication link. Task
// devices in package arena are *Handle values of either kind, sharing one
// pointer-keyed device-timeline map in the scheduler (see package
// schedule).
type Kind int

const (
	KindCompute Kind = iota
	KindComm
)

// Handle is the unit every lookup in Model returns and every Task is
// assigned to. Per-device serialization in the scheduler keys off pointer
// identity, exactly as the original simulator keyed off a Device* map.
type Handle struct {
	kind Kind

	// Compute fields (kind == KindCompute)
	ID       ID
	Node     int
	Slot     int
	Capacity int64 // bytes

	// Comm fields (kind == KindComm)
	Bandwidth float64 // bytes/sec
}

// IsCompute reports whether h represents a compute device.
func (h *Handle) IsCompute() bool { return h.kind == KindCompute }

func (h *Handle) String() string {
	if h.IsCompute() {
		return fmt.Sprintf("compute(id=%d node=%d slot=%d)", h.ID, h.Node, h.Slot)
	}
	return fmt.Sprintf("comm(bw=%.4g)", h.Bandwidth)
}

// Model is the read-only, once-loaded cluster-model configuration: compute
// devices plus the three comm-link families the Graph Builder's
// transfer-chain construction needs (intra-node GPU<->GPU, GPU<->host
// DRAM, inter-node DRAM<->DRAM).
type Model struct {
	totalSlots int

	compute   map[ID]*Handle
	intraNode map[int64]*Handle // fingerprint over (srcSlot, dstSlot)
	gpuToDRAM map[int]*Handle   // by slot
	dramToGPU map[int]*Handle   // by slot
	interNode map[int64]*Handle // fingerprint over (srcNode, dstNode)
}

// NewModel creates an empty device catalog. totalSlots is N in the
// src*N+dst fingerprint used by the pairwise comm tables; it must be at
// least the number of distinct slot/node ids that will be registered.
func NewModel(totalSlots int) *Model {
	return &Model{
		totalSlots: totalSlots,
		compute:    make(map[ID]*Handle),
		intraNode:  make(map[int64]*Handle),
		gpuToDRAM:  make(map[int]*Handle),
		dramToGPU:  make(map[int]*Handle),
		interNode:  make(map[int64]*Handle),
	}
}

// TotalSlots returns N, the fingerprint multiplier fixed at construction.
func (m *Model) TotalSlots() int { return m.totalSlots }

func (m *Model) fingerprint(src, dst int) int64 {
	return int64(src)*int64(m.totalSlots) + int64(dst)
}

// AddCompute registers one accelerator at global id, living at (node, slot).
func (m *Model) AddCompute(id ID, node, slot int, capacity int64) *Handle {
	h := &Handle{kind: KindCompute, ID: id, Node: node, Slot: slot, Capacity: capacity}
	m.compute[id] = h
	return h
}

// AddIntraNodeLink registers the GPU<->GPU link bandwidth between two
// slots on the same node.
func (m *Model) AddIntraNodeLink(srcSlot, dstSlot int, bandwidth float64) *Handle {
	h := &Handle{kind: KindComm, Bandwidth: bandwidth}
	m.intraNode[m.fingerprint(srcSlot, dstSlot)] = h
	return h
}

// AddGPUToDRAM registers the upload bandwidth from a GPU slot to its
// node-local host DRAM.
func (m *Model) AddGPUToDRAM(slot int, bandwidth float64) *Handle {
	h := &Handle{kind: KindComm, Bandwidth: bandwidth}
	m.gpuToDRAM[slot] = h
	return h
}

// AddDRAMToGPU registers the download bandwidth from host DRAM to a GPU
// slot. Kept distinct from AddGPUToDRAM so upload/download asymmetry (spec
// Open Question 3) is representable.
func (m *Model) AddDRAMToGPU(slot int, bandwidth float64) *Handle {
	h := &Handle{kind: KindComm, Bandwidth: bandwidth}
	m.dramToGPU[slot] = h
	return h
}

// AddInterNodeLink registers the DRAM<->DRAM bandwidth between two nodes.
func (m *Model) AddInterNodeLink(srcNode, dstNode int, bandwidth float64) *Handle {
	h := &Handle{kind: KindComm, Bandwidth: bandwidth}
	m.interNode[m.fingerprint(srcNode, dstNode)] = h
	return h
}

// Compute resolves a compute device by its flat global id. Panics if
// unregistered.
func (m *Model) Compute(id ID) *Handle {
	h, ok := m.compute[id]
	if !ok {
		panic(fmt.Sprintf("device: no compute device registered for id %d", id))
	}
	return h
}

// IntraNodeLink resolves the GPU<->GPU link between two slots on one node.
func (m *Model) IntraNodeLink(srcSlot, dstSlot int) *Handle {
	h, ok := m.intraNode[m.fingerprint(srcSlot, dstSlot)]
	if !ok {
		panic(fmt.Sprintf("device: no intra-node link registered for slots %d->%d", srcSlot, dstSlot))
	}
	return h
}

// GPUToDRAM resolves the upload link for a GPU slot.
func (m *Model) GPUToDRAM(slot int) *Handle {
	h, ok := m.gpuToDRAM[slot]
	if !ok {
		panic(fmt.Sprintf("device: no GPU->DRAM link registered for slot %d", slot))
	}
	return h
}

// DRAMToGPU resolves the download link for a GPU slot.
func (m *Model) DRAMToGPU(slot int) *Handle {
	h, ok := m.dramToGPU[slot]
	if !ok {
		panic(fmt.Sprintf("device: no DRAM->GPU link registered for slot %d", slot))
	}
	return h
}

// InterNodeLink resolves the DRAM<->DRAM link between two nodes.
func (m *Model) InterNodeLink(srcNode, dstNode int) *Handle {
	h, ok := m.interNode[m.fingerprint(srcNode, dstNode)]
	if !ok {
		panic(fmt.Sprintf("device: no inter-node link registered for nodes %d->%d", srcNode, dstNode))
	}
	return h
}

// ComputeIDs returns every registered compute device id, in no particular
// order — callers needing determinism (the memory accountant) must sort.
func (m *Model) ComputeIDs() []ID {
	ids := make([]ID, 0, len(m.compute))
	for id := range m.compute {
		ids = append(ids, id)
	}
	return ids
}
