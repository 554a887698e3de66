package rbac

const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
	RoleAdmin      = "admin"
)

const (
	PermExerciseView    = "exercise:view"
	PermExerciseEdit    = "exercise:edit"
	PermExercisePublish = "exercise:publish"
	PermExerciseDelete  = "exercise:delete"
	PermQuestionEdit    = "question:edit"
	PermAttemptTake     = "attempt:take"
	PermAttemptSubmit   = "attempt:submit"
	PermPrefsEdit       = "preferences:edit"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleInstructor: {
		"exercise:*",
		"question:*",
		PermPrefsEdit,
	},
	RoleStudent: {
		PermExerciseView,
		"attempt:*",
		PermPrefsEdit,
	},
	RoleAdmin: {
		"*",
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
