// Package spigen generates service-binding registries from annotated
// declarations.
//
// A service contract is a type marked as such; a provider is a concrete type
// that names one or more contracts it implements. spigen collects both across
// analysis passes and, once the last pass is over, writes one registry per
// contract listing its providers (META-INF/services/<contract>, one name per
// line, sorted). Contracts without providers, and providers naming types
// that are missing or are not contracts, are reported as errors.
//
// Layout:
//   - spi: the processor core (resolver, accumulator, generator, pass loop)
//   - spi/graphfile: declaration graphs read from YAML documents
//   - spi/gosource: declaration graphs read from Go packages (//spi: directives)
//   - spi/goindex: a Go source mirror of the generated registries
//   - cmd/spigen: the command-line front end
//   - examples/*: a Go example and a graph-file example
package spigen
