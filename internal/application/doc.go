// Package application wires the secretconf command: it builds the reader,
// loader and factory described by the resolved settings and renders the
// typed configuration they produce.
package application
