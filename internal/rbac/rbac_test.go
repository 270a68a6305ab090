package rbac

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer comment", role: RoleViewer, action: ActionComment, allow: false},
		{name: "commenter comment", role: RoleCommenter, action: ActionComment, allow: true},
		{name: "commenter resolve", role: RoleCommenter, action: ActionResolve, allow: false},
		{name: "editor resolve", role: RoleEditor, action: ActionResolve, allow: true},
		{name: "editor quote", role: RoleEditor, action: ActionQuote, allow: true},
		{name: "editor admin", role: RoleEditor, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("owner"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestActions(t *testing.T) {
	want := []Action{ActionRead, ActionComment}
	if diff := cmp.Diff(want, Actions(RoleCommenter)); diff != "" {
		t.Fatalf("Actions(commenter) mismatch (-want +got):\n%s", diff)
	}
	if got := Normalize("superuser"); got != RoleViewer {
		t.Fatalf("Normalize(superuser) = %q", got)
	}
}
