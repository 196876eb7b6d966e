package typesys

// Conversion is the kind of implicit conversion between two types.
type Conversion uint8

const (
	ConversionNone Conversion = iota
	ConversionIdentity
	ConversionImplicitReference
	ConversionBoxing
	ConversionNullable
)

// Exists reports whether a conversion is available.
func (c Conversion) Exists() bool {
	return c != ConversionNone
}

// String returns a human readable conversion name.
func (c Conversion) String() string {
	switch c {
	case ConversionIdentity:
		return "identity"
	case ConversionImplicitReference:
		return "implicit reference"
	case ConversionBoxing:
		return "boxing"
	case ConversionNullable:
		return "nullable"
	default:
		return "none"
	}
}

// Oracle answers type identity, signature and conversion questions for the
// planner. Implementations must be deterministic and safe for concurrent reads.
type Oracle interface {
	// Info returns the type description, or false when the type is unknown.
	Info(id ID) (*TypeInfo, bool)
	// Conversion classifies the implicit conversion from one type to another.
	Conversion(from, to ID) Conversion
}

// IsTask reports whether id is a task-like type and returns its element type.
func IsTask(o Oracle, id ID) (ID, bool) {
	info, ok := o.Info(id)
	if !ok || info.Kind != KindTask {
		return "", false
	}
	return info.Elem, true
}

// DelegateSignature returns the signature of a delegate type.
func DelegateSignature(o Oracle, id ID) (*Signature, bool) {
	info, ok := o.Info(id)
	if !ok || info.Kind != KindDelegate || info.Signature == nil {
		return nil, false
	}
	return info.Signature, true
}

// Implements reports whether typ implements iface either directly or through
// its base types and inherited interfaces.
func Implements(o Oracle, typ, iface ID) bool {
	seen := make(map[ID]bool)
	var walk func(ID) bool
	walk = func(id ID) bool {
		if id == "" || seen[id] {
			return false
		}
		seen[id] = true
		info, ok := o.Info(id)
		if !ok {
			return false
		}
		for _, i := range info.Interfaces {
			if i == iface || walk(i) {
				return true
			}
		}
		return walk(info.Base)
	}
	return walk(typ)
}

// FactoryCapabilities returns the factory capability interfaces implemented by typ,
// including typ itself when it is one.
func FactoryCapabilities(o Oracle, typ ID) []ID {
	var out []ID
	seen := make(map[ID]bool)
	var walk func(ID)
	walk = func(id ID) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		info, ok := o.Info(id)
		if !ok {
			return
		}
		if info.Factory != nil {
			out = append(out, id)
		}
		for _, i := range info.Interfaces {
			walk(i)
		}
		walk(info.Base)
	}
	walk(typ)
	return out
}
