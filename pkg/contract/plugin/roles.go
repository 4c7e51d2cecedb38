package plugin

const (
	// RoleProducer plugins originate a data stream and publish it under their label.
	RoleProducer Role = "producer"

	// RoleTransformer plugins map a labeled stream to a new stream with the same label.
	RoleTransformer Role = "transformer"

	// RoleConsumer plugins receive the final stream of a label and perform side effects.
	RoleConsumer Role = "consumer"
)

// Role names the capability a plugin instance fills in the pipeline.
type Role string

// OrderedRoles defines the order in which roles are loaded and executed.
var OrderedRoles = []Role{
	RoleProducer,
	RoleTransformer,
	RoleConsumer,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleProducer, RoleTransformer, RoleConsumer:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// Implements reports whether p satisfies the full interface for role r.
// Only the method set is inspected, so p may be a typed nil prototype.
func Implements(r Role, p Plugin) bool {
	if p == nil {
		return false
	}

	switch r {
	case RoleProducer:
		_, ok := p.(Producer)
		return ok
	case RoleTransformer:
		_, ok := p.(Transformer)
		return ok
	case RoleConsumer:
		_, ok := p.(Consumer)
		return ok
	default:
		return false
	}
}
