// Package permission decides whether an actor may perform an action on a resource.
package permission

import (
	"libris/internal/models"
)

// Action names a CRUD operation.
type Action string

const (
	List          Action = "list"
	Retrieve      Action = "retrieve"
	Create        Action = "create"
	Update        Action = "update"
	PartialUpdate Action = "partial_update"
	Destroy       Action = "destroy"
)

// IsRead reports whether a is a safe, read-only action.
func (a Action) IsRead() bool {
	return a == List || a == Retrieve
}

// Can evaluates the content rules: reads are open, creation needs an
// authenticated actor, and mutation needs staff or ownership. Resources that
// are not Ownable can only be mutated by staff.
func Can(action Action, actor models.Actor, resource any) bool {
	if action.IsRead() {
		return true
	}
	if !actor.Authenticated() {
		return false
	}
	if action == Create || actor.IsStaff() {
		return true
	}
	owned, ok := resource.(models.Ownable)
	if !ok {
		return false
	}
	return owned.OwnerID() == actor.ID()
}

// CanCatalog is Can for ownerless catalogue records: anyone reads, only staff
// write.
func CanCatalog(action Action, actor models.Actor) bool {
	if action.IsRead() {
		return true
	}
	return actor.IsStaff()
}

// CanUser evaluates the account rules. Listing, creating and deleting accounts
// is staff-only; everyone else may only see and edit themselves.
func CanUser(action Action, actor models.Actor, target *models.User) bool {
	if !actor.Authenticated() {
		return false
	}
	if actor.IsStaff() {
		return true
	}
	switch action {
	case Retrieve, Update, PartialUpdate:
		return target != nil && target.ID == actor.ID()
	default:
		return false
	}
}
