package diag

// Code is a stable diagnostic identifier.
type Code string

// Registration table codes.
const (
	InvalidConversion       Code = "SI0001"
	UnboundGeneric          Code = "SI0002"
	TypeNotPublic           Code = "SI0003"
	NoAccessibleConstructor Code = "SI0004"
	AmbiguousConstructors   Code = "SI0005"
	StructSingleInstance    Code = "SI0006"
	AbstractRegistration    Code = "SI0007"
	RecursiveModule         Code = "SI0008"
	ByRefParameter          Code = "SI0009"
	DuplicateRegistration   Code = "SI0010"
	ConflictingModules      Code = "SI0011"
	UnknownType             Code = "SI0012"
	InvalidFactoryMethod    Code = "SI0013"
	InvalidDecorator        Code = "SI0014"
	NotAFactory             Code = "SI0015"
	UnknownModule           Code = "SI0016"
)

// Resolution codes.
const (
	CircularDependency         Code = "SI0101"
	MissingDependency          Code = "SI0102"
	AsyncInSyncContext         Code = "SI0103"
	AmbiguousDelegateParameter Code = "SI0104"
	UnusedDelegateParameter    Code = "SI0105"
	DelegateReturnsSingleton   Code = "SI0106"
	DelegateIdentity           Code = "SI0107"
	NestedDelegateIdentity     Code = "SI0108"
)

// Disposal codes.
const (
	AsyncDisposalInSyncContext Code = "SI0201"
	SyncTeardownOfAsyncValue   Code = "SI0202"
)

// Generator codes.
const (
	NotAContainer Code = "SI0301"
)

var warnings = map[Code]bool{
	UnusedDelegateParameter:    true,
	DelegateReturnsSingleton:   true,
	DelegateIdentity:           true,
	NestedDelegateIdentity:     true,
	AsyncDisposalInSyncContext: true,
	SyncTeardownOfAsyncValue:   true,
}

// Severity returns the default severity of the code.
func (c Code) Severity() Severity {
	if warnings[c] {
		return SeverityWarning
	}
	return SeverityError
}
