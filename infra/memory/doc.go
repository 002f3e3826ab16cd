// Package memory holds allocation helpers shared by the hot write path.
package memory
