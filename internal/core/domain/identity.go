package domain

// AdminRole is the role attribute value granting access to admin-gated
// operations (Mint, Burn, Admin*).
const AdminRole = "admin"

// Identity is the invoking principal, extracted from the transaction context
// by the caller and threaded explicitly through every operation.
type Identity struct {
	ID   string
	Role string
}

func (i Identity) IsAdmin() bool {
	return i.Role == AdminRole
}
