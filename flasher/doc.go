// Package flasher writes validated firmware batches to a device.
//
// # Overview
//
// The sequencer takes a Batch of resolved parts and:
//   - Orders parts by ascending flash address (stable for equal addresses)
//   - Erases the flash once, before the first write, if requested
//   - Writes each part, reporting per-part and overall progress
//   - Stops at the first failing part, without rolling back earlier parts
//
// States move Idle -> Preparing -> Writing -> Completed, or to Failed.
//
// # Basic Usage
//
//	// User provides the transport (serial, USB, network, or a mock)
//	var programmer flasher.DeviceProgrammer = myesp.Open("/dev/ttyUSB0", 921600)
//
//	info, err := programmer.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer programmer.Disconnect()
//
//	batch, err := flasher.NewBatch(parts, validation, flasher.BatchOptions{
//	    EraseBeforeFlash: true,
//	    ChipFamily:       info.ChipFamily,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f := flasher.New(programmer)
//	if err := f.Flash(ctx, batch); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
// Each part gets an equal share of 100%. Byte progress fills 95% of that
// share and the last 5% is added when the part completes, so progress moves
// visibly even when a transport reports coarse progress:
//
//	f := flasher.New(programmer,
//	    flasher.WithProgressCallback(func(p flasher.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %s\n", p.State, p.Percentage, p.Filename)
//	    }),
//	)
//
// # Cancellation
//
// The context is checked before the erase and between parts. A write that
// has started always runs to completion, so the device may hold a mix of old
// and new parts after cancellation.
//
// # Error Handling
//
// The package provides structured error types:
//   - PartError: writing one part failed
//   - ConnectionLostError: the programmer reported ErrConnectionLost
//   - EraseError: the erase failed
//   - CancelledError: the context was cancelled between parts
//   - NotFlashableError: NewBatch rejected the parts
package flasher
