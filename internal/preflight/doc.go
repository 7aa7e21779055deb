// Package preflight provides readiness checks for the filesystem paths and
// binaries the encoder depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before each job. A failed check leaves
//     the job pending and stops the run instead of filling a disk halfway
//     through an encode.
//   - The CLI "config show" command prints the individual results.
package preflight
