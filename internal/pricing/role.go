package pricing

import "strings"

// ComponentRole returns the effective role of a component. An explicit role
// wins; otherwise the legacy heuristic inspects the name and expression.
func ComponentRole(c Component) Role {
	if c.Role != RoleUnspecified {
		return c.Role
	}
	return legacyRoleHint(c.Name, c.Expression)
}

// VariableRole returns the effective role of a variable declaration, using
// the legacy heuristic on its code and display name when no role is stored.
func VariableRole(v VariableDecl) Role {
	if v.Role != RoleUnspecified {
		return v.Role
	}
	return legacyRoleHint(v.Code, v.DisplayName)
}

// legacyRoleHint is the compatibility heuristic for records saved before
// roles were stored: a case-insensitive "profit" or "charge" substring in any
// of the texts. It misfires on names such as "nonprofit_fee" and is only a
// fallback.
func legacyRoleHint(texts ...string) Role {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), "profit") {
			return RoleProfit
		}
	}
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), "charge") {
			return RoleCharge
		}
	}
	return RoleNone
}

// HasRoleComponents reports whether any component classifies as profit or
// charge, which selects the per-component aggregation path.
func HasRoleComponents(components []Component) bool {
	for _, c := range components {
		switch ComponentRole(c) {
		case RoleProfit, RoleCharge:
			return true
		}
	}
	return false
}
