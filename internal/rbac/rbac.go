package rbac

type Role string
type Action string

const (
	RoleAdministrador Role = "administrador"
	RoleEditor        Role = "editor"
	RoleAutor         Role = "autor"
	RoleColaborador   Role = "colaborador"
	RoleAssinante     Role = "assinante"
)

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionPublish Action = "publish"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdministrador:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite || action == ActionPublish
	case RoleAutor:
		return action == ActionRead || action == ActionWrite
	case RoleColaborador:
		return action == ActionRead || action == ActionWrite
	case RoleAssinante:
		return action == ActionRead
	default:
		return false
	}
}

// Valid reports whether role is one of the five fixed tiers.
func Valid(role Role) bool {
	switch role {
	case RoleAdministrador, RoleEditor, RoleAutor, RoleColaborador, RoleAssinante:
		return true
	default:
		return false
	}
}

// All lists the accepted role values, in permission order.
func All() []Role {
	return []Role{RoleAdministrador, RoleEditor, RoleAutor, RoleColaborador, RoleAssinante}
}

func Normalize(role string) Role {
	if Valid(Role(role)) {
		return Role(role)
	}
	return RoleAssinante
}
