// Package confload composes a Reader, which fetches raw configuration text,
// and a Loader, which parses that text into a generic mapping, into a strongly
// typed configuration struct. Results are memoized per reader, loader and
// target type for the lifetime of the owning Factory.
package confload
