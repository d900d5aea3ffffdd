package domain

import "fmt"

// Entity identifies a stored document type.
type Entity string

const (
	Product Entity = "product"
	Order   Entity = "order"
	Import  Entity = "import"
	Review  Entity = "review"
	Comment Entity = "comment"
	User    Entity = "user"
)

// Entities lists every entity in registration order.
var Entities = []Entity{Product, Order, Import, Review, Comment, User}

// Collection returns the storage collection name.
func (e Entity) Collection() string {
	return string(e) + "s"
}

// ParseEntity maps a name such as "product" or "products" to an Entity.
func ParseEntity(name string) (Entity, error) {
	for _, e := range Entities {
		if name == string(e) || name == e.Collection() {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown entity %q", name)
}

// Roles.
const (
	RoleUser     = "user"
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// Caller is the authenticated principal performing an operation.
type Caller struct {
	ID   string
	Role string
}

// Privileged reports whether the caller may act on records owned by others.
// Only staff roles are; unknown roles are treated like RoleUser.
func (c Caller) Privileged() bool {
	return c.Role == RoleEmployee || c.Role == RoleAdmin
}

// Owns reports whether the caller is the owner id.
func (c Caller) Owns(ownerID string) bool {
	return c.ID != "" && c.ID == ownerID
}
