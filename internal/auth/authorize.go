package auth

// Authorized implements §4.1's literal authorization rule:
//
//	allow <=> (not secured) or (exists r. r in userRoles and r in serviceRoles)
//
// Both a missing principal and an empty serviceRoles set on a secured
// service deny access (closed by default), directly grounded in
// original_source/users.rs's check_authorization and its exhaustive
// unit tests (test_no_user, test_user_roles_are_empty,
// test_allowed_roles_are_empty, ...).
func Authorized(secured bool, userRoles, serviceRoles []string) bool {
	if !secured {
		return true
	}
	if len(serviceRoles) == 0 {
		return false
	}
	for _, want := range serviceRoles {
		for _, have := range userRoles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether roles contains the built-in ADMINS role
// required to reach the admin control-surface endpoints (§4.1).
func IsAdmin(roles []string) bool {
	for _, r := range roles {
		if r == "ADMINS" {
			return true
		}
	}
	return false
}
