package auth

import "github.com/he1237596/feed-service/internal/models"

// Policy is the authorization capability the registry depends on. It is
// passed in explicitly wherever mutations are guarded, so there is no
// init-order dance around a package-level check.
type Policy interface {
	// CanMutate reports whether the claims holder may change the package.
	CanMutate(c *Claims, pkg *models.Package) bool
	// CanView reports whether the claims holder may read the package.
	// Anonymous callers pass nil claims.
	CanView(c *Claims, pkg *models.Package) bool
}

// OwnerPolicy grants mutation to the package owner and admins, and
// visibility of private packages to the same set.
type OwnerPolicy struct{}

func (OwnerPolicy) CanMutate(c *Claims, pkg *models.Package) bool {
	if c == nil {
		return false
	}
	return c.Role == string(models.RoleAdmin) || pkg.CreatedBy == c.UserID
}

func (OwnerPolicy) CanView(c *Claims, pkg *models.Package) bool {
	if pkg.Public {
		return true
	}
	return OwnerPolicy{}.CanMutate(c, pkg)
}
