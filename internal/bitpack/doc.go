// Package bitpack reads and writes unsigned bit fields at arbitrary offsets
// and converts between fixed-point raw values and physical units.
//
// # Bit Order
//
// Bit 0 of a buffer is the least significant bit of byte 0, bit 8 is the
// least significant bit of byte 1, and so on. A field of width w at offset o
// occupies bits o..o+w-1, with the field's least significant bit stored at
// bit o. Fields may straddle any number of byte boundaries.
//
// # Usage Example
//
//	buf := make([]byte, 10)
//	c := bitpack.NewCursor(buf)
//	c.Write(3, mode)
//	c.Write(10, product)
//	if err := c.Err(); err != nil {
//	    return err
//	}
//
// # Fixed Point
//
// A Scale describes a raw integer field as raw*Factor + Offset. Encoding
// rounds to the nearest raw step and clamps into the field's range, so an
// out-of-range physical value never spills into neighbouring fields.
package bitpack
