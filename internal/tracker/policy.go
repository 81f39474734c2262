package tracker

// Statuses with executor restrictions. Matching is by status name, the way
// the workflow data is seeded; renaming a status opts it out of the rule.
const (
	StatusInProgress = "In progress"
	StatusCodeReview = "Code review"
	StatusDevTest    = "Dev test"
	StatusTesting    = "Testing"
)

// testerExcluded lists the statuses a Tester may not execute.
var testerExcluded = map[string]bool{
	StatusInProgress: true,
	StatusCodeReview: true,
	StatusDevTest:    true,
}

// HasRole reports whether the role set contains the given role.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsManager reports whether the role set contains the Manager role.
// Managers administer tasks (delete, assign roles) but never execute them.
func IsManager(roles []string) bool {
	return HasRole(roles, RoleManager)
}

// CheckExecutor decides whether a user with the given roles may be the
// executor of a task in the given status. Returns nil when allowed, a
// policy error otherwise. Pure: role data is passed in, never fetched.
func CheckExecutor(roles []string, status Status) error {
	if IsManager(roles) {
		return Policyf("a user with the %q role cannot be assigned as executor", RoleManager)
	}
	if testerExcluded[status.Name] && HasRole(roles, RoleTester) {
		return Policyf("a user with the %q role cannot be the executor while the status is %q, %q or %q",
			RoleTester, StatusInProgress, StatusCodeReview, StatusDevTest)
	}
	if status.Name == StatusTesting && HasRole(roles, RoleDeveloper) {
		return Policyf("a user with the %q role cannot be the executor while the status is %q",
			RoleDeveloper, StatusTesting)
	}
	return nil
}
