package confload

import "context"

// Reader obtains raw configuration text from an external source.
type Reader interface {
	Read(ctx context.Context) (string, error)
}

// Loader parses raw configuration text into a generic key/value mapping.
// Nested objects are returned as map[string]any and sequences as []any.
type Loader interface {
	Load(raw string) (map[string]any, error)
}

// Config is satisfied by any struct embedding Marker. It carries no behaviour
// and only restricts which types the factory will construct.
type Config interface {
	configMarker()
}

// Marker tags a struct as a configuration type:
//
//	type AppConfig struct {
//		confload.Marker
//		Addr    string        `config:"addr"`
//		Timeout time.Duration `config:"timeout" default:"5s"`
//		Label   *string       `config:"label"`
//	}
type Marker struct{}

func (Marker) configMarker() {}
