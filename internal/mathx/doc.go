// Package mathx provides small generic numeric helpers used across dstcore.
//
// Clamp and ClampRange bound a value, Lerp interpolates floating point values
// with fused multiply-adds, and RoundCast rounds a float64 into any numeric
// type.
//
// BinPack arranges rectangles onto square power-of-two pages with shelf
// packing:
//
//	entries := []mathx.BinEntry{{Width: 30, Height: 20}, {Width: 12, Height: 12}}
//	res := mathx.BinPack(entries, 1, 1)
//	// entries[i].Page, X and Y now hold each placement.
package mathx
