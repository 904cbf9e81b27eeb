// Package types defines the data model shared by one verification request:
// the submission, its error category, the candidates, their outcomes and the
// final result. None of them outlive the request that created them.
package types
