package classify

// Role is the categorical role of a discovered entity.
type Role string

const (
	RolePage         Role = "page"
	RoleLayout       Role = "layout"
	RoleReusableUnit Role = "reusable-unit"
	RoleStatefulHook Role = "stateful-hook"
	RoleSharedCtx    Role = "shared-context"
	RoleUtility      Role = "utility"
)

// PropField is one member of an entity's declared interface surface.
type PropField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Entity is the per-file analysis result: one structural building block of
// the analyzed application. Identity is Name within a single run; collisions
// are tolerated with last-write-wins.
type Entity struct {
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	File        string      `json:"file"`
	Description string      `json:"description,omitempty"`
	Props       []PropField `json:"props"`
	Uses        []string    `json:"uses"`
	UsedBy      []string    `json:"usedBy"`
	Source      string      `json:"source,omitempty"`
	RuntimeHint string      `json:"runtimeHint,omitempty"` // "client" or "server"

	// Exports lists the file's exported identifiers; the resolver uses them
	// as an alternate lookup key and they are not part of the wire shape.
	Exports []string `json:"-"`
}
