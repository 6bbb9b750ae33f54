package authz

// Operator names one comparison a policy rule can apply to an attribute.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
)

// EvaluateCondition applies one operator to an actual and an expected value.
// It is a pure function with no I/O and it never fails: a type mismatch or an
// operator it does not know yields false, so a malformed rule denies only
// itself instead of aborting the rest of the policy set.
//
// Semantics, with no implicit coercion:
//
//	eq        structural equality
//	ne        negation of eq
//	in        expected is a sequence containing actual
//	contains  actual is a sequence containing expected
//	gte, lte  both operands numeric, ordered comparison
func EvaluateCondition(actual Value, op Operator, expected Value) bool {
	switch op {
	case OpEq:
		return actual.Equal(expected)
	case OpNe:
		return !actual.Equal(expected)
	case OpIn:
		seq, ok := expected.Array()
		if !ok {
			return false
		}
		for _, it := range seq {
			if it.Equal(actual) {
				return true
			}
		}
		return false
	case OpContains:
		seq, ok := actual.Array()
		if !ok {
			return false
		}
		for _, it := range seq {
			if it.Equal(expected) {
				return true
			}
		}
		return false
	case OpGte:
		a, okA := actual.Number()
		b, okB := expected.Number()
		return okA && okB && a >= b
	case OpLte:
		a, okA := actual.Number()
		b, okB := expected.Number()
		return okA && okB && a <= b
	}
	// fail closed on operators this build does not understand
	return false
}
