package shared

// Role classifies what a user may do in the approval workflow.
type Role string

const (
	// RoleRequester raises requisitions and may cancel their own pending ones.
	RoleRequester Role = "requester"
	// RoleFinance approves or rejects requisitions.
	RoleFinance Role = "finance"
	// RoleAdmin has the same decision rights as finance.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated principal a request runs as. It is the single
// identity accessor used everywhere a decision is attributed.
type Actor struct {
	ID    int64
	Name  string
	Email string
	Role  Role
}

// CanDecide reports whether the actor may approve or reject requisitions.
func (a *Actor) CanDecide() bool {
	return a != nil && (a.Role == RoleFinance || a.Role == RoleAdmin)
}
