package sfx

import "github.com/vehiclesfx/extension/internal/host"

// Handle addresses an instance slot. A handle whose generation no longer
// matches the slot refers to a removed instance.
type Handle struct {
	index uint32
	gen   uint32
}

type slot struct {
	gen  uint32
	inst *Instance
}

// table is an arena of instances keyed by vehicle id. Freed slots are
// reused with a bumped generation so stale handles miss.
type table struct {
	slots []slot
	free  []uint32
	byID  map[host.VehicleID]Handle
}

func newTable() *table {
	return &table{byID: make(map[host.VehicleID]Handle)}
}

func (t *table) insert(inst *Instance) Handle {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot{})
	}
	t.slots[idx].inst = inst
	h := Handle{index: idx, gen: t.slots[idx].gen}
	t.byID[inst.Vehicle] = h
	return h
}

func (t *table) get(h Handle) *Instance {
	if int(h.index) >= len(t.slots) {
		return nil
	}
	s := t.slots[h.index]
	if s.gen != h.gen {
		return nil
	}
	return s.inst
}

func (t *table) lookup(id host.VehicleID) (*Instance, Handle, bool) {
	h, ok := t.byID[id]
	if !ok {
		return nil, Handle{}, false
	}
	inst := t.get(h)
	return inst, h, inst != nil
}

func (t *table) remove(h Handle) {
	inst := t.get(h)
	if inst == nil {
		return
	}
	if cur, ok := t.byID[inst.Vehicle]; ok && cur == h {
		delete(t.byID, inst.Vehicle)
	}
	t.slots[h.index] = slot{gen: h.gen + 1}
	t.free = append(t.free, h.index)
}

// each visits live instances in slot order. fn must not insert or remove.
func (t *table) each(fn func(h Handle, inst *Instance)) {
	for i, s := range t.slots {
		if s.inst != nil {
			fn(Handle{index: uint32(i), gen: s.gen}, s.inst)
		}
	}
}

func (t *table) len() int {
	return len(t.byID)
}

func (t *table) clear() {
	for i := range t.slots {
		if t.slots[i].inst != nil {
			t.remove(Handle{index: uint32(i), gen: t.slots[i].gen})
		}
	}
}
