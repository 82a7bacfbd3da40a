package receipt

import "fmt"

// CanSubmit reports whether the caller may submit receipts
func CanSubmit(id Identity) bool {
	return id.UserID != "" && id.Role.IsValid()
}

// CanReview reports whether the caller may approve, reject or flag receipts
func CanReview(id Identity) bool {
	return id.UserID != "" && id.Role == RoleSupervisor
}

// CanViewAll reports whether the caller may see receipts of other users
func CanViewAll(id Identity) bool {
	return CanReview(id)
}

// CanManageDirectory reports whether the caller may edit users and departments
func CanManageDirectory(id Identity) bool {
	return id.UserID != "" && id.Role == RoleSupervisor
}

func forbidden(action string, id Identity) error {
	return fmt.Errorf("%s not allowed for %s %q: %w", action, id.Role, id.UserID, ErrForbidden)
}
