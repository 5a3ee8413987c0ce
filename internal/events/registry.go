package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// job
	"job.started":   {},
	"job.completed": {},
	"job.failed":    {},
	"job.cancelled": {},
	"job.despawned": {},
	"job.paused":    {},
	"job.resumed":   {},

	// task (debug)
	"task.attached": {},
	"task.detached": {},
	"task.error":    {},

	// trigger
	"trigger.fired":       {},
	"trigger.activated":   {},
	"trigger.deactivated": {},
	"trigger.error":       {},

	// engine
	"engine.started":     {},
	"engine.stopped":     {},
	"engine.hour":        {},
	"engine.activated":   {},
	"engine.deactivated": {},

	// entity
	"entity.spawned":   {},
	"entity.despawned": {},

	// operator
	"operator.command":  {},
	"operator.rejected": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
