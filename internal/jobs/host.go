package jobs

// EntityID is a handle to an entity in the host's storage.
type EntityID uint64

// Host is the entity storage the engine drives. The engine never touches
// components directly: attaching and detaching a task, spawning and
// destroying entities, and the per-entity job slot all go through here.
//
// Implementations must clone the task on Attach if they let effect handlers
// mutate it.
type Host interface {
	// Spawn creates a new entity set up for task (for example a Spawn task
	// places it at its location) and returns its handle.
	Spawn(task Task) EntityID

	// Despawn destroys e together with its job slot.
	Despawn(e EntityID)

	// Exists reports whether e is alive.
	Exists(e EntityID) bool

	// Attach puts task on e as its active descriptor.
	Attach(e EntityID, task Task)

	// Detach removes the descriptor of the given kind from e.
	Detach(e EntityID, kind Kind)

	// SetPaused adds or removes the paused marker effect handlers respect.
	SetPaused(e EntityID, paused bool)

	// Job returns the instance bound to e.
	Job(e EntityID) (*Instance, bool)

	// BindJob makes e the owner of inst, replacing any previous binding.
	BindJob(e EntityID, inst *Instance)

	// UnbindJob drops e's instance.
	UnbindJob(e EntityID)
}
