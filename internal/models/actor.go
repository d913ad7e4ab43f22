package models

// Actor is the identity a request runs as. The zero value is anonymous.
type Actor struct {
	User *User
}

// ActorFor wraps u; a nil user yields the anonymous actor.
func ActorFor(u *User) Actor {
	return Actor{User: u}
}

func (a Actor) Authenticated() bool { return a.User != nil }

// ID returns the user id, or 0 for anonymous actors.
func (a Actor) ID() uint {
	if a.User == nil {
		return 0
	}
	return a.User.ID
}

func (a Actor) IsStaff() bool { return a.User.HasStaffAccess() }
