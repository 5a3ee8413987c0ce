package jobs

import (
	"sort"
	"sync"
)

// Catalog maps job identities to templates and instantiates them.
type Catalog struct {
	mu        sync.RWMutex
	templates map[JobID]*Template
	engine    *Engine
}

// NewCatalog creates an empty catalog whose instances are driven by engine.
func NewCatalog(engine *Engine) *Catalog {
	return &Catalog{
		templates: make(map[JobID]*Template),
		engine:    engine,
	}
}

// Register validates tpl and stores it under its identity. A later template
// with the same identity replaces the earlier one.
func (c *Catalog) Register(tpl *Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.templates[tpl.ID] = tpl
	c.mu.Unlock()
	return nil
}

// Lookup returns the template registered under id.
func (c *Catalog) Lookup(id JobID) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tpl, ok := c.templates[id]
	return tpl, ok
}

// LookupName is Lookup for an authored job name.
func (c *Catalog) LookupName(name string) (*Template, bool) {
	return c.Lookup(IdentityFromString(name))
}

// Remove drops the template registered under id. Running instances keep
// their own copy.
func (c *Catalog) Remove(id JobID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.templates[id]; !ok {
		return false
	}
	delete(c.templates, id)
	return true
}

// List returns the registered templates ordered by label.
func (c *Catalog) List() []*Template {
	c.mu.RLock()
	out := make([]*Template, 0, len(c.templates))
	for _, tpl := range c.templates {
		out = append(out, tpl)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of registered templates.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// Assign binds a fresh instance of job id to an existing entity, replacing
// whatever job the entity was running. A dead entity or a lookup miss leaves
// everything untouched.
func (c *Catalog) Assign(ent EntityID, id JobID) error {
	host := c.engine.Host()
	if !host.Exists(ent) {
		return unknownEntity(ent)
	}
	tpl, ok := c.Lookup(id)
	if !ok {
		return templateNotFound(id)
	}
	if _, running := host.Job(ent); running {
		if err := c.engine.Cancel(ent); err != nil {
			return err
		}
	}
	return c.engine.Bind(ent, NewInstance(tpl))
}

// Start spawns a new entity shaped by the job's first task and binds a fresh
// instance of job id to it.
func (c *Catalog) Start(id JobID) (EntityID, error) {
	tpl, ok := c.Lookup(id)
	if !ok {
		return 0, templateNotFound(id)
	}
	inst := NewInstance(tpl)
	node, ok := inst.CurrentNode()
	if !ok {
		return 0, &JobError{Kind: ErrNodeNotFound, Job: id, Task: inst.Current(), Msg: "start task"}
	}
	ent := c.engine.Host().Spawn(node.Task)
	if err := c.engine.Bind(ent, inst); err != nil {
		c.engine.Host().Despawn(ent)
		return 0, err
	}
	return ent, nil
}

// StartName is Start for an authored job name.
func (c *Catalog) StartName(name string) (EntityID, error) {
	return c.Start(IdentityFromString(name))
}
