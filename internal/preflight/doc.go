// Package preflight provides readiness checks for the directories, binaries
// and remote services dropcast depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll and CheckSystemDeps once at startup and refuses
//     to start when a required directory or binary is unusable.
//   - The CLI "dropcast status" command uses the same functions to display
//     health without starting anything.
package preflight
