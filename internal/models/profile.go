package models

// Roles a profile may hold. A profile's role gates which dashboard and
// actions it may access.
const (
	RoleAdmin  = "admin"
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
)

// ValidRole reports whether s is one of the known roles.
func ValidRole(s string) bool {
	return s == RoleAdmin || s == RoleFarmer || s == RoleBuyer
}

// Profile is the durable identity record for a person, distinct from the
// ephemeral phone session. Phone is unique; name and role stay null until
// the owner completes profile setup.
type Profile struct {
	BaseModel
	Phone    *string `gorm:"uniqueIndex" json:"phone"`
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Language string  `gorm:"default:en" json:"language"`
}

// Complete reports whether the profile has both a name and a role.
// Incomplete profiles force the client into the profile-completion flow.
func (p *Profile) Complete() bool {
	return p.Name != nil && *p.Name != "" && p.Role != nil && *p.Role != ""
}
