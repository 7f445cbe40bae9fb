// Package spi discovers service bindings in a declaration graph and turns them
// into registry artifacts.
//
// A host (see subpackages graphfile and gosource) hands the package a plain-data
// view of the analyzed code: type declarations, their kinds, their canonical and
// binary names, and the annotation usages attached to them. Two marker
// annotations drive everything:
//
//   - spi.ServiceContract marks an interface as a lookup key.
//   - spi.ServiceProvider(value = [A, B]) asserts that the annotated type
//     implements contracts A and B. The marking may also be repeated, in which
//     case the host wraps the instances in a spi.ServiceProviders container.
//
// Processing is split into three steps that run strictly in order:
//
//   - Resolver extracts the contracts a declaration provides, expanding
//     repeat containers and recovering deferred type references.
//   - Accumulator collects contracts and bindings across passes and is
//     finalized exactly once.
//   - Generator groups bindings per contract, writes one registry file per
//     contract under META-INF/services/, and validates both sides of every
//     binding.
//
// Processor ties the three together for a host-driven pass loop; Run does the
// same for a fixed set of Units.
//
// Typical use
//
//	diags := spi.NewDiagnostics(logger)
//	err := spi.Run(units, spi.NewDirWriter("build/resources"), diags)
//	if err != nil {
//		// tool-internal failure (malformed marking, I/O)
//	}
//	if diags.HasErrors() {
//		// validation failed: diags.Err() lists every message
//	}
//
// Import
//
//	"github.com/sghaida/spigen/spi"
package spi
