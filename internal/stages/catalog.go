// Package stages provides the built-in pipeline stages.
package stages

import (
	"github.com/dyluth/downlink/internal/pipeline"
)

// Stage type names as written in configuration.
const (
	TypePN   = "pn"
	TypeVCDU = "vcdu"
	TypePath = "path"
	TypeSink = "sink"
)

// Register adds every built-in stage to c.
func Register(c *pipeline.Catalog) error {
	for typ, f := range map[string]pipeline.Factory{
		TypePN:   NewPN,
		TypeVCDU: NewVCDU,
		TypePath: NewPath,
		TypeSink: NewSink,
	} {
		if err := c.Register(typ, f); err != nil {
			return err
		}
	}
	return nil
}

// DefaultCatalog returns a catalog holding the built-in stages.
func DefaultCatalog() *pipeline.Catalog {
	c := pipeline.NewCatalog()
	if err := Register(c); err != nil {
		// Only possible on a programming error in the table above.
		panic(err)
	}
	return c
}
