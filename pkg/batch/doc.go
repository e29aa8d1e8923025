// Package batch converts lists of NIF files with a shared codec.
//
// Each file is read, decoded, transformed and re-encoded on its own graph,
// so files convert concurrently up to Options.Workers. Walking directories
// is left to the caller. Outputs go either back over the input, optionally
// after saving the original to a storage.BackupStore, or under
// Options.OutputDir at the input's path relative to Options.BaseDir.
//
// Every outcome is appended to Options.Journal when one is set. With
// SkipUnchanged, a file whose checksum matches what its last successful run
// left behind is not converted again.
package batch
