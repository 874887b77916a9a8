// Package manifest provides pure functions for reading Swarm stack manifests.
//
// Only the parts of a stack file the updater acts on are modelled: the
// top-level networks, configs and secrets mappings. All functions are pure
// (no I/O, no side effects); the imperative shell (internal/shell/actions)
// reads the files and hands the bytes to this package.
//
// # Functions
//
//   - Parse: Decode manifest YAML into a Manifest
//   - ExternalNetworks: Networks that must exist before a deploy
//   - FileRefs: Config and secret files referenced by the manifest
//   - VariableName: Environment variable name derived from a file path
//   - Fingerprint: Content digest used to detect file changes
package manifest
