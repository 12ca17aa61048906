package catalog

// Well-known permission codes used by the authorization surface itself.
const (
	CodeRoleManage       Code = "role.manage"
	CodeAssignmentManage Code = "assignment.manage"
	CodeUserManage       Code = "user.manage"
	CodeAuditView        Code = "audit.view"
)

// defaultCodes is the fixed permission list loaded at startup. CRUD modules
// consult these codes through the gate; they never register their own.
var defaultCodes = []string{
	"project.create",
	"project.read",
	"project.update",
	"project.archive",
	"task.create",
	"task.read",
	"task.update",
	"task.delete",
	"document.create",
	"document.read",
	"document.update",
	"document.delete",
	"change.create",
	"change.read",
	"change.approve",
	"change.reject",
	string(CodeUserManage),
	string(CodeRoleManage),
	string(CodeAssignmentManage),
	string(CodeAuditView),
}

// Default builds the application catalog. It panics on a malformed or
// duplicated entry in the fixed list, which is a programming error caught at
// startup, not a runtime condition.
func Default() *Catalog {
	c := New()
	for _, code := range defaultCodes {
		if err := c.Register(code); err != nil {
			panic(err)
		}
	}
	return c
}
