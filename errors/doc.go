// Package errors provides structured error types for the handle runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the expected and actual signatures, operand path, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInvoke, errors.KindSignatureMismatch).
//		Expected("(I)I").
//		Actual("(J)I").
//		Detail("invokeExact").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.SignatureMismatch(errors.PhaseInvoke, "(I)I", "(J)I")
//	err := errors.ArityLimit(errors.PhaseLink, desc, 256, 254)
//
// Arity-limit and internal errors are fatal to the linkage request that
// produced them; see (*Error).Fatal.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
