package protocol

import "bytes"

var syncWord = []byte{SyncByte0, SyncByte1}

// Decoder reassembles response envelopes from UART notification chunks. A
// notification may carry several responses, or a response may be split
// across notifications.
type Decoder struct {
	buf []byte
}

// NewDecoder creates a decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset drops any buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Buffered returns the number of bytes awaiting a complete frame. A header
// whose length byte is wrong holds back at most ResponseHeaderSize +
// MaxPayloadSize bytes; once that many arrive its CRC fails and decoding
// resumes at the next sync word.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends chunk and returns every complete response it can extract.
// Corrupt frames are reported in errs and skipped; bytes before a sync word
// are discarded.
func (d *Decoder) Feed(chunk []byte) (responses []*Response, errs []error) {
	d.buf = append(d.buf, chunk...)

	for {
		i := bytes.Index(d.buf, syncWord)
		if i < 0 {
			// Keep a trailing first sync byte in case its partner is next.
			if n := len(d.buf); n > 0 && d.buf[n-1] == SyncByte0 {
				d.buf = append(d.buf[:0], SyncByte0)
			} else {
				d.buf = d.buf[:0]
			}
			return responses, errs
		}
		if i > 0 {
			d.buf = append(d.buf[:0], d.buf[i:]...)
		}

		if len(d.buf) < ResponseHeaderSize {
			return responses, errs
		}
		if d.buf[4]&ResponseFlag == 0 {
			errs = append(errs, NewError(ErrTypeInvalidFraming, "type 0x%02X is not a response", d.buf[4]))
			d.buf = append(d.buf[:0], d.buf[len(syncWord):]...)
			continue
		}
		if len(d.buf) < ResponseHeaderSize+int(d.buf[6]) {
			return responses, errs
		}

		resp, n, err := ParseResponse(d.buf)
		if err != nil {
			errs = append(errs, err)
			d.buf = append(d.buf[:0], d.buf[len(syncWord):]...)
			continue
		}
		responses = append(responses, resp)
		d.buf = append(d.buf[:0], d.buf[n:]...)
	}
}
