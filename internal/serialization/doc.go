// Package serialization saves and restores training checkpoints in the .born
// binary format.
//
// A checkpoint holds everything the driver needs to resume: the flat parameter
// vector, the per-layer updater state, the network configuration and the round
// counters.
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00 Magic "BORN"
//	    0x04 Version (uint32 LE)
//	    0x08 Flags (uint32 LE)
//	    0x0C Reserved
//	    0x10 Header size (uint64 LE)
//	    0x18 Data size (uint64 LE)
//	    0x20 SHA-256 of the data section (32 bytes)
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: float64 LE]
//
// Example usage:
//
//	ckpt := &serialization.Checkpoint{Params: params, Updater: state, Conf: js, Round: 3}
//	if err := serialization.SaveFile("run.born", ckpt); err != nil {
//	    log.Fatal(err)
//	}
//
//	ckpt, err := serialization.LoadFile("run.born", serialization.ReaderOptions{})
package serialization
