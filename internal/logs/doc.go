// Package logs reads the reviewharvest log file for the "logs" command.
//
// Lines are filtered by run, stage, or video. Both log formats are
// understood: JSON lines are matched on their fields, console lines on their
// key=value pairs.
package logs
