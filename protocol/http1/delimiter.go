// File: protocol/http1/delimiter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resumable delimiter scanner for frames split across reads.

package http1

// headDelimiter ends the request line plus header fields.
var headDelimiter = []byte("\r\n\r\n")

// DelimiterScanner finds a delimiter in a growing buffer without rescanning
// bytes it has already seen. It keeps a KMP match state between calls, so
// the buffer passed to Scan must be the same unread bytes as before with
// new data appended.
type DelimiterScanner struct {
	delim   []byte
	fail    []int
	matched int // delimiter bytes matched at the scan position
	scanned int // bytes of the buffer already examined
	max     int // 0 means unbounded
}

// NewDelimiterScanner builds a scanner for delim that gives up after max
// bytes (0 for no limit).
func NewDelimiterScanner(delim []byte, max int) *DelimiterScanner {
	d := &DelimiterScanner{}
	d.init(delim, max)
	return d
}

func (d *DelimiterScanner) init(delim []byte, max int) {
	d.delim = delim
	d.max = max
	d.fail = make([]int, len(delim))
	for i, k := 1, 0; i < len(delim); i++ {
		for k > 0 && delim[i] != delim[k] {
			k = d.fail[k-1]
		}
		if delim[i] == delim[k] {
			k++
		}
		d.fail[i] = k
	}
	d.Reset()
}

// Scan resumes over buf. When the delimiter is found it returns the length
// of the frame including the delimiter. ErrHeaderTooLarge is reported once
// max bytes were scanned without a match.
func (d *DelimiterScanner) Scan(buf []byte) (end int, found bool, err error) {
	for ; d.scanned < len(buf); d.scanned++ {
		if d.max > 0 && d.scanned >= d.max {
			return 0, false, headerTooLarge(d.max)
		}
		c := buf[d.scanned]
		for d.matched > 0 && c != d.delim[d.matched] {
			d.matched = d.fail[d.matched-1]
		}
		if c == d.delim[d.matched] {
			d.matched++
		}
		if d.matched == len(d.delim) {
			end = d.scanned + 1
			d.Reset()
			return end, true, nil
		}
	}
	return 0, false, nil
}

// Scanned returns how many bytes have been examined since the last match.
func (d *DelimiterScanner) Scanned() int { return d.scanned }

// Reset forgets all progress.
func (d *DelimiterScanner) Reset() {
	d.matched = 0
	d.scanned = 0
}
