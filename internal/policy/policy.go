// Package policy decides whether a mutation may proceed. It performs no I/O
// and is safe for concurrent use.
package policy

import (
	"strconv"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
)

// Action is the kind of mutation requested.
type Action int

const (
	ActionCreate Action = iota + 1
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// Resource is the entity kind a mutation targets.
type Resource int

const (
	ResourceTask Resource = iota + 1
	ResourceComment
	ResourceUser
)

func (r Resource) String() string {
	switch r {
	case ResourceTask:
		return "task"
	case ResourceComment:
		return "comment"
	case ResourceUser:
		return "user"
	}
	return "resource"
}

// Request carries everything a decision depends on.
type Request struct {
	Principal *auth.Principal
	Action    Action
	Resource  Resource
	// ResourceID is only used in denial messages.
	ResourceID int64
	// AuthorID is the owner of the resource; for users it is the account id.
	AuthorID   int64
	ExecutorID *int64
	// Delta is the proposed change set for task updates, including
	// entity.FieldExecutorID when the executor would change.
	Delta entity.FieldDelta
}

// Decision is the outcome of Evaluate. Permitted lists the field changes that
// may be applied for task updates.
type Decision struct {
	Allowed   bool
	Reason    apperr.Kind
	Message   string
	Permitted entity.FieldDelta
}

// Err returns the denial as an *apperr.Error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &apperr.Error{Kind: d.Reason, Message: d.Message}
}

func allow(permitted entity.FieldDelta) Decision {
	return Decision{Allowed: true, Permitted: permitted}
}

func deny(reason apperr.Kind, msg string) Decision {
	return Decision{Reason: reason, Message: msg}
}

// Evaluate applies the rules in order; the first match wins.
func Evaluate(req Request) Decision {
	p := req.Principal
	if p == nil {
		return deny(apperr.KindUnauthenticated, "Authentication required")
	}

	switch req.Action {
	case ActionDelete:
		switch req.Resource {
		case ResourceTask, ResourceComment:
			if p.UserID == req.AuthorID {
				return allow(nil)
			}
			return deny(apperr.KindNotOwner, denyMessage(req))
		case ResourceUser:
			if p.IsAdmin() {
				return allow(nil)
			}
			return deny(apperr.KindInsufficientRole, "Only ADMIN can delete users")
		}

	case ActionUpdate:
		switch req.Resource {
		case ResourceTask:
			return evaluateTaskUpdate(p, req)
		case ResourceComment, ResourceUser:
			if p.UserID == req.AuthorID {
				return allow(nil)
			}
			return deny(apperr.KindNotOwner, denyMessage(req))
		}

	case ActionCreate:
		// any authenticated principal may create tasks and comments;
		// ownership is assigned from the principal by the caller
		if req.Resource == ResourceTask || req.Resource == ResourceComment {
			return allow(nil)
		}
	}
	return deny(apperr.KindNotOwner, denyMessage(req))
}

func evaluateTaskUpdate(p *auth.Principal, req Request) Decision {
	if p.UserID == req.AuthorID {
		return allow(req.Delta)
	}
	if req.ExecutorID != nil && *req.ExecutorID == p.UserID {
		if req.Delta.Only(entity.FieldStatus) {
			return allow(entity.NewFieldDelta(entity.FieldStatus))
		}
		return deny(apperr.KindExecutorFieldRestricted,
			"You have permission to update ONLY \"status\" for this task: "+itoa(req.ResourceID))
	}
	return deny(apperr.KindNotOwner, denyMessage(req))
}

func denyMessage(req Request) string {
	return "You have no permission to " + req.Action.String() + " this " + req.Resource.String() + ": " + itoa(req.ResourceID)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
