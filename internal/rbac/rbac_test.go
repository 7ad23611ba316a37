package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "assinante read", role: RoleAssinante, action: ActionRead, allow: true},
		{name: "assinante write", role: RoleAssinante, action: ActionWrite, allow: false},
		{name: "colaborador write", role: RoleColaborador, action: ActionWrite, allow: true},
		{name: "colaborador publish", role: RoleColaborador, action: ActionPublish, allow: false},
		{name: "autor write", role: RoleAutor, action: ActionWrite, allow: true},
		{name: "editor publish", role: RoleEditor, action: ActionPublish, allow: true},
		{name: "editor admin", role: RoleEditor, action: ActionAdmin, allow: false},
		{name: "administrador admin", role: RoleAdministrador, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("root"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestValid(t *testing.T) {
	for _, role := range All() {
		if !Valid(role) {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	for _, role := range []Role{"root", "admin", "Administrador", ""} {
		if Valid(role) {
			t.Fatalf("expected %q to be invalid", role)
		}
	}
}

func TestNormalizeDefaultsToAssinante(t *testing.T) {
	if got := Normalize("superuser"); got != RoleAssinante {
		t.Fatalf("Normalize(superuser) = %q, want assinante", got)
	}
	if got := Normalize("editor"); got != RoleEditor {
		t.Fatalf("Normalize(editor) = %q, want editor", got)
	}
}
