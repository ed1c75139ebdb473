// Package session ties the flashing components into one workflow.
//
// A Session owns the selected parts, the loaded metadata, operator-entered
// addresses and the device connection. The three operations a front end
// needs are:
//
//	// pure: resolve addresses and validate the memory map
//	a := s.Assess()
//
//	// fetch the manifest parts, all or nothing
//	results, err := s.DownloadManifestParts(ctx, onDownloadProgress)
//
//	// validate again, build a batch and write it
//	batch, err := s.FlashBatch(ctx, session.FlashOptions{EraseBeforeFlash: true}, onFlashProgress)
//
// ResolveAndValidate is the stateless form of Assess, usable without a
// session or a device.
package session
