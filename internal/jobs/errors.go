package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrTemplateNotFound  = errors.New("job template not found")
	ErrNodeNotFound      = errors.New("task node not found")
	ErrDuplicateTaskKey  = errors.New("duplicate task key")
	ErrInvalidJumpTarget = errors.New("invalid jump target")
	ErrEntityNotBound    = errors.New("entity has no job")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrInvalidTemplate   = errors.New("invalid job template")
	ErrUnexpectedTask    = errors.New("unexpected task kind")
)

// JobError carries the context of a failed catalog, load or transition call.
// Kind is one of the sentinel errors above.
type JobError struct {
	Kind   error
	Entity EntityID
	Job    JobID
	Task   TaskID
	Msg    string
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *JobError) Unwrap() error { return e.Kind }

func notBound(e EntityID) error {
	return &JobError{Kind: ErrEntityNotBound, Entity: e, Msg: fmt.Sprintf("entity %d", e)}
}

func unknownEntity(e EntityID) error {
	return &JobError{Kind: ErrUnknownEntity, Entity: e, Msg: fmt.Sprintf("entity %d", e)}
}

func templateNotFound(id JobID) error {
	return &JobError{Kind: ErrTemplateNotFound, Job: id, Msg: id.String()}
}

func invalidf(format string, args ...any) error {
	return &JobError{Kind: ErrInvalidTemplate, Msg: fmt.Sprintf(format, args...)}
}
