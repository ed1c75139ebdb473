// Package partition parses ESP-IDF partition tables (partitions.bin).
//
// # Binary Format
//
// The table is a sequence of 32-byte little-endian rows:
//
//	[Magic(2)=AA 50][Type(1)][Subtype(1)][Offset(4)][Size(4)][Name(16)][Flags(4)]
//
// It ends with an MD5 row (EB EB, padding, 16-byte digest of the preceding
// rows) or an erased row (FF FF). The table normally lives at flash offset
// 0x8000 and never exceeds 0xC00 bytes.
//
// # Usage
//
//	table, err := partition.Parse("partitions.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := table.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	app, _ := table.FindOffset(partition.TypeApp, partition.SubtypeOTA0, partition.SubtypeFactory)
//	fmt.Printf("app slot at 0x%X, flash %s\n", app, table.Analyze().FlashSize)
package partition
