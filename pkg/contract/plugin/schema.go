package plugin

import (
	"maps"
	"slices"
)

const (
	TypeInt      DataType = "int"
	TypeFloat    DataType = "float"
	TypeString   DataType = "string"
	TypeBool     DataType = "bool"
	TypeDatetime DataType = "datetime"
	TypeUnknown  DataType = "unknown"
)

// DataType is the logical type of a column.
type DataType string

// Numeric reports whether values of the type can take part in arithmetic.
func (d DataType) Numeric() bool {
	return d == TypeInt || d == TypeFloat
}

// Schema maps column names to their logical type.
// Schemas are passed by value between plugins; use Clone before mutating one you did not create.
type Schema map[string]DataType

// Clone returns a copy of the schema that can be mutated independently.
func (s Schema) Clone() Schema {
	if s == nil {
		return Schema{}
	}
	return maps.Clone(s)
}

// Columns returns the column names in lexical order.
func (s Schema) Columns() []string {
	return slices.Sorted(maps.Keys(s))
}

// Has reports whether the schema contains the named column.
func (s Schema) Has(column string) bool {
	_, ok := s[column]
	return ok
}

// Equal reports whether both schemas describe the same columns with the same types.
func (s Schema) Equal(other Schema) bool {
	return maps.Equal(s, other)
}
