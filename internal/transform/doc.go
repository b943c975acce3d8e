// Package transform normalizes records against a schema.
//
// A Transformer runs four stages in a fixed order:
//
//	Rename     drop unknown keys, map aliases to canonical names
//	Transform  derive values with the field's transform expression
//	Defaults   fill absent fields from declared defaults
//	Cast       coerce every value to the first matching declared type
//
// The lookup tables the stages use are built once by BuildIndex and never
// modified afterwards, so a Transformer can be shared by any number of
// goroutines. Every stage returns a new record and leaves its input untouched.
//
// Two transform expressions are supported:
//
//	int2boolean      null stays null, otherwise integer(value) > 0
//	copyFrom(field)  the value of another field in the pre-transform record
package transform
