// Command haven-scorer serves the built-in partial-ratio scorer over the
// plugin protocol. It is a template for out-of-process topic scorers.
package main

import (
	"github.com/felixgeelhaar/haven/internal/guard"
	"github.com/felixgeelhaar/haven/internal/plugin"
)

func main() {
	plugin.Serve(guard.PartialRatio{})
}
