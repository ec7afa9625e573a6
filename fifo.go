package max30003

import "fmt"

// Tag is the ETAG carried in the low bits of every FIFO word.
type Tag uint8

const (
	TagValid         Tag = 0 // valid sample
	TagValidFast     Tag = 1 // valid sample taken in fast recovery mode
	TagLastValid     Tag = 2 // last sample currently in the FIFO
	TagLastValidFast Tag = 3 // last sample, taken in fast recovery mode
	TagEmpty         Tag = 6 // read from an empty FIFO, not a sample
	TagOverflow      Tag = 7 // the FIFO overflowed, data was lost
)

func (t Tag) String() string {
	switch t {
	case TagValid:
		return "VALID"
	case TagValidFast:
		return "VALID_FAST_MODE"
	case TagLastValid:
		return "LAST_VALID"
	case TagLastValidFast:
		return "LAST_VALID_FAST_MODE"
	case TagEmpty:
		return "FIFO_EMPTY"
	case TagOverflow:
		return "FIFO_OVERFLOW"
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Known reports whether t is part of the defined tag set.
func (t Tag) Known() bool {
	switch t {
	case TagValid, TagValidFast, TagLastValid, TagLastValidFast, TagEmpty, TagOverflow:
		return true
	}
	return false
}

// Terminal reports why decoding of a burst stopped.
type Terminal uint8

const (
	// TerminalNone means every word of the burst was a sample.
	TerminalNone Terminal = iota
	// TerminalEmpty means the FIFO ran dry; there is no more data for now.
	TerminalEmpty
	// TerminalOverflow means samples were lost before this read. The FIFO
	// must be reset before its content can be trusted again.
	TerminalOverflow
)

func (t Terminal) String() string {
	switch t {
	case TerminalNone:
		return "none"
	case TerminalEmpty:
		return "empty"
	case TerminalOverflow:
		return "overflow"
	}
	return fmt.Sprintf("Terminal(%d)", uint8(t))
}

// Sample is one decoded ECG FIFO word.
type Sample struct {
	Value int32 // 18-bit two's complement ECG voltage code
	Tag   Tag
}

// Fast reports whether the sample was taken in fast recovery mode.
func (s Sample) Fast() bool {
	return s.Tag == TagValidFast || s.Tag == TagLastValidFast
}

// Last reports whether the sample was the last one in the FIFO.
func (s Sample) Last() bool {
	return s.Tag == TagLastValid || s.Tag == TagLastValidFast
}

const (
	sampleBits = 18
	sampleSign = 1 << (sampleBits - 1)
)

func signExtend18(v uint32) int32 {
	v &= 1<<sampleBits - 1
	if v&sampleSign != 0 {
		return int32(v) - 1<<sampleBits
	}
	return int32(v)
}

// DecodeWord decodes a single 24-bit FIFO word. Reserved tags yield
// ErrUnknownTag; TagEmpty and TagOverflow are returned as-is.
func DecodeWord(word uint32) (Sample, error) {
	s := Sample{
		Value: signExtend18(FIFOFields.Sample.Get(word)),
		Tag:   Tag(FIFOFields.ETag.Get(word)),
	}
	if !s.Tag.Known() {
		return s, fmt.Errorf("%w: %d in word 0x%06X", ErrUnknownTag, uint8(s.Tag), word&wordMask)
	}
	return s, nil
}

// Decoder lazily decodes the words of one burst read, oldest first.
//
// Decoding stops at the first TagEmpty or TagOverflow word, which is not
// returned as a sample: the chip repeats that word for every further slot
// clocked out of the burst.
type Decoder struct {
	buf  []byte
	off  int
	cur  Sample
	term Terminal
	err  error
	done bool
}

// NewDecoder returns a decoder reading the words in raw.
func NewDecoder(raw []byte) *Decoder {
	return &Decoder{buf: raw}
}

// Next advances to the next sample. It returns false once the burst is
// exhausted, a terminal tag was seen or an error occurred.
func (dec *Decoder) Next() bool {
	if dec.done {
		return false
	}
	n := len(dec.buf) - dec.off
	switch {
	case n == 0:
		dec.done = true
		return false
	case n < wordBytes:
		dec.err = fmt.Errorf("%w: %d trailing bytes at offset %d", ErrTruncatedWord, n, dec.off)
		dec.done = true
		return false
	}

	p := dec.buf[dec.off : dec.off+wordBytes]
	word := uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	s, err := DecodeWord(word)
	if err != nil {
		dec.err = fmt.Errorf("word %d: %w", dec.off/wordBytes, err)
		dec.done = true
		return false
	}

	switch s.Tag {
	case TagEmpty:
		dec.term = TerminalEmpty
		dec.done = true
		return false
	case TagOverflow:
		dec.term = TerminalOverflow
		dec.done = true
		return false
	}

	dec.off += wordBytes
	dec.cur = s
	return true
}

// Sample returns the sample decoded by the last call to Next.
func (dec *Decoder) Sample() Sample {
	return dec.cur
}

// Terminal returns the terminal condition that stopped decoding, if any.
func (dec *Decoder) Terminal() Terminal {
	return dec.term
}

// Err returns the error that aborted decoding, if any.
func (dec *Decoder) Err() error {
	return dec.err
}

// Decode decodes a whole burst. On error the samples decoded before the
// offending word are returned along with it.
func Decode(raw []byte) ([]Sample, Terminal, error) {
	var (
		dec     = NewDecoder(raw)
		samples = make([]Sample, 0, len(raw)/wordBytes)
	)
	for dec.Next() {
		samples = append(samples, dec.Sample())
	}
	return samples, dec.Terminal(), dec.Err()
}
