package models

// Role names carried in identity tokens.
const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// Caller is the authenticated identity behind an operation. It is a closed
// union: only Customer, Provider and Admin implement it.
type Caller interface {
	Identity() string
	Role() string
	sealed()
}

type Customer struct {
	ID string
}

type Provider struct {
	ID         string // user id of the provider member
	ProviderID string // owning provider organisation
}

type Admin struct {
	ID string
}

func (c Customer) Identity() string { return c.ID }
func (c Customer) Role() string     { return RoleCustomer }
func (Customer) sealed()            {}

func (p Provider) Identity() string { return p.ID }
func (p Provider) Role() string     { return RoleProvider }
func (Provider) sealed()            {}

func (a Admin) Identity() string { return a.ID }
func (a Admin) Role() string     { return RoleAdmin }
func (Admin) sealed()            {}
