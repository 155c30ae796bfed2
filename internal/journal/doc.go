// Package journal records the history of stage runs in SQLite.
//
// Each stage execution gets one row, opened when the stage starts and closed
// with its counts and final status. The journal is advisory: stages never
// read it to make decisions, so losing the database loses history only.
package journal
