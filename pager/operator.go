package pager

import "fmt"

// Operator defines a comparison operator for filtering by column.
// Used in pagination boundary conditions.
type Operator string

func (o Operator) Valid() bool {
	return o == OperatorLT || o == OperatorGT
}

func (o Operator) ForOrder() Order {
	switch o {
	case OperatorGT:
		return OrderASC
	case OperatorLT:
		return OrderDESC
	default:
		panic(fmt.Errorf("cannot map operator '%s' to order", o))
	}
}

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"

	// operatorEq is the equality operator. It is private because we use it
	// ONLY while building boundary conditions.
	operatorEq Operator = "="
)
