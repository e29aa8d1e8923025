// Package journal records the outcome of every file a batch run touches.
//
// A journal is an append-only file of checksummed frames, one per Entry:
//
//	[CRC32][KeySize][ValueSize][Timestamp][Key][Value]
//
// The key is the input path and the value the JSON-encoded Entry. A crash
// mid-write leaves at most one torn frame at the tail; readers return every
// complete entry before it together with ErrCorruption.
//
// Batch runs use LastByPath with Checksum to skip inputs whose bytes have not
// changed since their last successful conversion.
package journal
