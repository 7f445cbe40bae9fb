// Command spigen generates service registries from annotated declarations.
//
// spigen reads one or more units of declarations, finds service contracts
// and the providers that name them, and writes one registry file per
// contract under META-INF/services/ (the format java.util.ServiceLoader and
// similar runtime lookups read). It can also mirror the registries into a
// Go source file.
//
// Inputs
//
//   - -graph file.yaml: a declaration graph document (see spigen -schema).
//   - -pkg pattern: Go packages, scanned for //spi:contract and
//     //spi:provider directives. Patterns resolve in -dir.
//
// Outputs
//
//   - -out dir: registries are written to dir/META-INF/services/<contract>.
//   - -go-out file.go: a Go index with Providers and Lookup, in package
//     -go-package.
//
// Configuration
//
// Everything can also come from an HCL file given with -config:
//
//	out        = "build/resources"
//	go_out     = "registry/registry_gen.go"
//	go_package = "registry"
//	graphs     = ["graph/services.yaml"]
//	packages   = ["./codec/..."]
//	log_level  = "info"
//	options = {
//	  aggregating = true
//	}
//
// Relative paths resolve against the config file's directory. Flags given on
// the command line win over the file; -option values are merged key by key.
//
// Typical go:generate usage
//
//	//go:generate go run github.com/sghaida/spigen/cmd/spigen -pkg ./... -out ../build/resources
//
// Exit codes
//
//	0  registries written, no errors reported
//	1  errors were reported or an output could not be written
//	2  usage or configuration error
//	3  internal failure
package main
