package jobs

import "sort"

// fakeHost records every host call so tests can assert the attach/detach
// protocol.
type fakeHost struct {
	next     EntityID
	alive    map[EntityID]bool
	attached map[EntityID]Task
	paused   map[EntityID]bool
	jobs     map[EntityID]*Instance
	log      []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		next:     1,
		alive:    make(map[EntityID]bool),
		attached: make(map[EntityID]Task),
		paused:   make(map[EntityID]bool),
		jobs:     make(map[EntityID]*Instance),
	}
}

func (h *fakeHost) Spawn(task Task) EntityID {
	e := h.next
	h.next++
	h.alive[e] = true
	h.log = append(h.log, "spawn:"+string(task.Kind()))
	return e
}

func (h *fakeHost) Despawn(e EntityID) {
	delete(h.alive, e)
	delete(h.attached, e)
	delete(h.jobs, e)
	delete(h.paused, e)
	h.log = append(h.log, "despawn")
}

func (h *fakeHost) Exists(e EntityID) bool { return h.alive[e] }

func (h *fakeHost) Attach(e EntityID, task Task) {
	if cur, ok := h.attached[e]; ok {
		panic("attach over " + string(cur.Kind()))
	}
	h.attached[e] = task.Clone()
	h.log = append(h.log, "attach:"+string(task.Kind()))
}

func (h *fakeHost) Detach(e EntityID, kind Kind) {
	if cur, ok := h.attached[e]; ok && cur.Kind() == kind {
		delete(h.attached, e)
	}
	h.log = append(h.log, "detach:"+string(kind))
}

func (h *fakeHost) SetPaused(e EntityID, paused bool) {
	if paused {
		h.paused[e] = true
		return
	}
	delete(h.paused, e)
}

func (h *fakeHost) Job(e EntityID) (*Instance, bool) {
	inst, ok := h.jobs[e]
	return inst, ok
}

func (h *fakeHost) BindJob(e EntityID, inst *Instance) { h.jobs[e] = inst }

func (h *fakeHost) UnbindJob(e EntityID) { delete(h.jobs, e) }

func (h *fakeHost) entities() []EntityID {
	out := make([]EntityID, 0, len(h.alive))
	for e := range h.alive {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// fixedRand returns its draws in order, repeating the last one.
type fixedRand struct {
	draws []int
	i     int
}

func (r *fixedRand) IntN(n int) int {
	v := r.draws[r.i]
	if r.i < len(r.draws)-1 {
		r.i++
	}
	return v % n
}

func newEngineAndCatalog() (*fakeHost, *Engine, *Catalog) {
	host := newFakeHost()
	engine := NewEngine(host)
	return host, engine, NewCatalog(engine)
}
