// Package authz decides which product operations a caller may perform.
package authz

import "github.com/sakashimaa/product-showcase/internal/domain"

type Operation string

const (
	OpRead     Operation = "read"
	OpCreate   Operation = "create"
	OpVote     Operation = "vote"
	OpComment  Operation = "comment"
	OpDelete   Operation = "delete"
	OpSetImage Operation = "set_image"
)

type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Err maps a refusal onto the domain error returned to callers.
func (d Decision) Err() error {
	switch d {
	case Allowed:
		return nil
	case Unauthenticated:
		return domain.ErrUnauthenticated
	default:
		return domain.ErrForbidden
	}
}

// Decide has no side effects. resource may be nil for operations that do not
// target an existing product.
func Decide(op Operation, caller *domain.Caller, resource *domain.Product) Decision {
	if op == OpRead {
		return Allowed
	}

	if caller == nil || caller.ID == "" {
		return Unauthenticated
	}

	switch op {
	case OpCreate, OpVote, OpComment:
		return Allowed
	case OpDelete, OpSetImage:
		if resource != nil && resource.IsCreator(caller) {
			return Allowed
		}
		return Forbidden
	default:
		return Forbidden
	}
}

// CanDelete is what the presentation layer uses to decide whether to offer a
// delete affordance at all.
func CanDelete(caller *domain.Caller, p *domain.Product) bool {
	return Decide(OpDelete, caller, p) == Allowed
}
