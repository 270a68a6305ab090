// Package rbac decides which comment operations a role may perform.
package rbac

type Role string
type Action string

const (
	RoleViewer    Role = "viewer"
	RoleCommenter Role = "commenter"
	RoleEditor    Role = "editor"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	// resolving threads and moving their pointers
	ActionResolve Action = "resolve"
	ActionQuote   Action = "quote"
	ActionAdmin   Action = "admin"
)

var allActions = []Action{ActionRead, ActionComment, ActionResolve, ActionQuote, ActionAdmin}

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionComment || action == ActionResolve || action == ActionQuote
	case RoleCommenter:
		return action == ActionRead || action == ActionComment
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Actions lists what role may do, in a fixed order.
func Actions(role Role) []Action {
	out := make([]Action, 0, len(allActions))
	for _, action := range allActions {
		if Can(role, action) {
			out = append(out, action)
		}
	}
	return out
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleCommenter, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
