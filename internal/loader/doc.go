// Package loader provides confload.Loader implementations for JSON and YAML
// configuration text.
package loader
