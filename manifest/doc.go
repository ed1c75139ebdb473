// Package manifest resolves firmware metadata documents.
//
// # Supported Shapes
//
// Two document shapes are accepted and modeled as a tagged union
// (Document is either *ChipManifest or *LegacyMetadata):
//
// Chip manifest, served by the firmware backend:
//
//	{
//	  "name": "tbeam",
//	  "version": "2.5.6.a1b2c3d",
//	  "builds": [{
//	    "chipFamily": "ESP32",
//	    "parts": [
//	      {"path": "firmware.bin", "offset": 0},
//	      {"path": "littlefs.bin", "offset": 3145728}
//	    ]
//	  }]
//	}
//
// Legacy build metadata, attached as a local file:
//
//	{
//	  "version": "2.5.6",
//	  "board": "tbeam",
//	  "mcu": "esp32",
//	  "files": ["firmware.bin", "littlefs.bin"],
//	  "part": [
//	    {"name": "firmware.bin", "offset": "0x10000", "size": "0x1F0000"},
//	    {"name": "littlefs.bin", "offset": "0x300000", "size": "0x100000"}
//	  ]
//	}
//
// # Usage
//
//	doc, err := manifest.Decode(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	meta, err := manifest.Resolve(doc)
//	if errors.Is(err, manifest.ErrMalformed) {
//	    // missing version, no parts, or a bad offset
//	}
//
// Resolve is deterministic and never modifies the document.
package manifest
