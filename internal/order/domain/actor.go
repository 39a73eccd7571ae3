package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated caller as forwarded by the gateway.
type Actor struct {
	UserID   string
	Role     Role
	SellerID string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanActOnOrder decides order-level fulfilment rights: admins, or the seller
// owning the order. A multi-seller order has no owner and is admin-only.
func CanActOnOrder(a Actor, o Order) bool {
	if a.IsAdmin() {
		return true
	}
	if a.Role != RoleSeller || a.SellerID == "" {
		return false
	}
	return o.SellerID != nil && *o.SellerID == a.SellerID
}

func CanActOnItem(a Actor, it Item) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleSeller && a.SellerID != "" && it.SellerID == a.SellerID
}

// CanViewOrder lets customers read their own orders and sellers read orders
// containing their items.
func CanViewOrder(a Actor, o Order) bool {
	switch {
	case a.IsAdmin():
		return true
	case a.Role == RoleSeller:
		return o.HasSeller(a.SellerID)
	default:
		return a.UserID != "" && o.CustomerID == a.UserID
	}
}
