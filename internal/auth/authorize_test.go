package auth

import "testing"

// These cases mirror original_source/users.rs's unit tests for
// check_authorization one-for-one.

func TestAuthorizedUnsecuredAlwaysAllows(t *testing.T) {
	if !Authorized(false, nil, nil) {
		t.Fatal("unsecured service must always allow")
	}
	if !Authorized(false, []string{"USERS"}, []string{"ADMINS"}) {
		t.Fatal("unsecured service must allow even with disjoint roles")
	}
}

func TestAuthorizedNoUser(t *testing.T) {
	if Authorized(true, nil, []string{"ADMINS"}) {
		t.Fatal("secured service with no user roles must deny")
	}
}

func TestAuthorizedUserHasAllRoles(t *testing.T) {
	if !Authorized(true, []string{"ADMINS", "USERS"}, []string{"ADMINS"}) {
		t.Fatal("user holding a superset of required roles must be allowed")
	}
}

func TestAuthorizedUserHasOneRole(t *testing.T) {
	if !Authorized(true, []string{"USERS"}, []string{"ADMINS", "USERS"}) {
		t.Fatal("user holding one of several acceptable roles must be allowed")
	}
}

func TestAuthorizedUserHasNoRole(t *testing.T) {
	if Authorized(true, []string{"GUESTS"}, []string{"ADMINS", "USERS"}) {
		t.Fatal("user holding none of the acceptable roles must be denied")
	}
}

func TestAuthorizedUserRolesAreEmpty(t *testing.T) {
	if Authorized(true, []string{}, []string{"ADMINS"}) {
		t.Fatal("user with no roles must be denied on a secured service")
	}
}

func TestAuthorizedServiceRolesAreEmpty(t *testing.T) {
	if Authorized(true, []string{"ADMINS"}, []string{}) {
		t.Fatal("secured service with empty roles must deny everyone (closed by default)")
	}
}

func TestAuthorizedAllRolesAreEmpty(t *testing.T) {
	if Authorized(true, []string{}, []string{}) {
		t.Fatal("secured service with empty roles and userless must deny")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin([]string{"USERS", "ADMINS"}) {
		t.Fatal("expected ADMINS role to be recognized")
	}
	if IsAdmin([]string{"USERS"}) {
		t.Fatal("expected non-admin roles to not be recognized as admin")
	}
}
