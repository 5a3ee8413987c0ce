package jobs

// Status is the lifecycle state of a job instance.
type Status string

const (
	StatusToDo     Status = "todo"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusDone     Status = "done"
	StatusInactive Status = "inactive"
)

// Instance is the live execution state of one job on one entity. It owns a
// clone of its template, so cursor moves never affect the catalog.
type Instance struct {
	Template *Template
	loops    uint32
	status   Status
	attached Kind // kind of the descriptor on the entity, "" when none
}

// NewInstance clones tpl into a fresh instance in StatusToDo.
func NewInstance(tpl *Template) *Instance {
	return &Instance{
		Template: tpl.Clone(),
		status:   StatusToDo,
	}
}

// Status returns the current lifecycle state.
func (i *Instance) Status() Status { return i.status }

// LoopCount returns the loop counter shared by every Loop node of the job.
func (i *Instance) LoopCount() uint32 { return i.loops }

// Current returns the cursor id.
func (i *Instance) Current() TaskID { return i.Template.Tasks.Current }

// CurrentNode returns the node under the cursor.
func (i *Instance) CurrentNode() (*TaskNode, bool) { return i.Template.Tasks.CurrentNode() }

// Attached reports whether the current task's descriptor is on the entity.
func (i *Instance) Attached() bool { return i.attached != "" }

// IsPaused reports whether effect handlers must leave this job alone.
func (i *Instance) IsPaused() bool { return i.status == StatusPaused }

// Snapshot is a read-only view of an instance for listings.
type Snapshot struct {
	Entity    EntityID `json:"entity"`
	Job       JobID    `json:"job_id"`
	Label     string   `json:"label"`
	Current   TaskID   `json:"current"`
	Task      string   `json:"task,omitempty"`
	Status    Status   `json:"status"`
	LoopCount uint32   `json:"loop_count"`
}

// Snapshot captures the instance's state for entity e.
func (i *Instance) Snapshot(e EntityID) Snapshot {
	s := Snapshot{
		Entity:    e,
		Job:       i.Template.ID,
		Label:     i.Template.Label,
		Current:   i.Current(),
		Status:    i.status,
		LoopCount: i.loops,
	}
	if n, ok := i.CurrentNode(); ok {
		s.Task = n.Task.Describe()
	}
	return s
}
