// Package preflight provides readiness checks for the data directory and the
// external APIs reviewharvest depends on.
//
// "reviewharvest check" prints every result; --online also performs one
// authenticated request per API. Stage commands only run the data directory
// check before touching state.
package preflight
