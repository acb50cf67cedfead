// Package auth resolves the acting user's role and threads it through
// request contexts. Authentication itself (tokens, sessions) lives in an
// external identity provider; this package only consumes its output:
// a user ID, group names, and a superuser flag.
package auth

// Role is the resolved capability level of an actor.
type Role string

const (
	RoleAdmin           Role = "Admin"
	RoleControlAssessor Role = "Control Assessor"
	RoleControlReviewer Role = "Control Reviewer"
	RoleClient          Role = "Client"
)

// ResolveRole maps group membership to a single role. Priority ordering
// resolves multiple memberships: Admin > Assessor > Reviewer > Client.
// Superusers always resolve to Admin. No matching group defaults to the
// least-privileged Client role.
func ResolveRole(groups []string, superuser bool) Role {
	if superuser {
		return RoleAdmin
	}

	member := make(map[string]bool, len(groups))
	for _, g := range groups {
		member[g] = true
	}

	for _, r := range []Role{RoleAdmin, RoleControlAssessor, RoleControlReviewer, RoleClient} {
		if member[string(r)] {
			return r
		}
	}
	return RoleClient
}

// In reports whether the role is one of the allowed roles.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// CanSignAsPreparer reports whether the role may apply a preparer sign-off.
func (r Role) CanSignAsPreparer() bool {
	return r.In(RoleAdmin, RoleControlAssessor)
}

// CanSignAsReviewer reports whether the role may apply a reviewer sign-off.
func (r Role) CanSignAsReviewer() bool {
	return r.In(RoleAdmin, RoleControlReviewer)
}
