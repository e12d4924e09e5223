// Package common provides helpers shared by the tool packages: argument
// parsing, JSON result rendering and the instrumentation wrapper every
// tool handler runs through.
package common
