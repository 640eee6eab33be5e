// Package reader provides confload.Reader implementations backed by AWS
// Secrets Manager and by local files. Each reader fetches its payload at most
// once per instance and serves the cached text afterwards.
package reader
