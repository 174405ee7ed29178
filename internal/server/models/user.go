// Package models holds the domain records shared by the service and
// repository layers: application users, pulse users (broker credentials),
// broker queues, plus the validation and authorization predicates that
// operate on them.
package models

// User is an application identity resolved from the identity provider.
// A user is created on first successful login and may own any number of
// pulse users.
type User struct {
	Email      string
	Admin      bool
	PulseUsers []*PulseUser // owned broker credentials, loaded on demand
}

// CanManagePulseUser reports whether u may mutate pu. Admins may touch
// any pulse user; everyone else only the ones they own.
func (u *User) CanManagePulseUser(pu *PulseUser) bool {
	if u == nil || pu == nil {
		return false
	}
	if u.Admin {
		return true
	}
	return pu.OwnedBy(u.Email)
}

// CanDeleteQueue reports whether u may delete q. A queue with no owner
// on record can only be removed by an admin.
func (u *User) CanDeleteQueue(q *Queue) bool {
	if u == nil || q == nil {
		return false
	}
	if u.Admin {
		return true
	}
	if q.Owner == nil {
		return false
	}
	return q.Owner.OwnedBy(u.Email)
}
