package max30003

import (
	"errors"
	"testing"
)

func words(ws ...uint32) []byte {
	raw := make([]byte, 0, len(ws)*wordBytes)
	for _, w := range ws {
		raw = append(raw, byte(w>>16), byte(w>>8), byte(w))
	}
	return raw
}

// word builds a FIFO word from a sample value and a tag.
func word(v int32, tag Tag) uint32 {
	return (uint32(v)&0x3FFFF)<<3 | uint32(tag)
}

func TestDecodeWord(t *testing.T) {
	for _, tc := range []struct {
		name string
		word uint32
		want Sample
		err  error
	}{
		{"zero", 0x000000, Sample{0, TagValid}, nil},
		{"one", 0x000008, Sample{1, TagValid}, nil},
		{"minus-one", 0x1FFFF8, Sample{-1, TagValid}, nil},
		{"max", 0x0FFFF9, Sample{131071, TagValidFast}, nil},
		{"min-last-fast", 0x100003, Sample{-131072, TagLastValidFast}, nil},
		{"last", word(-42, TagLastValid), Sample{-42, TagLastValid}, nil},
		{"empty", 0x000006, Sample{0, TagEmpty}, nil},
		{"overflow", 0x000007, Sample{0, TagOverflow}, nil},
		{"reserved-4", 0x000004, Sample{0, 4}, ErrUnknownTag},
		{"reserved-5", 0x00000D, Sample{1, 5}, ErrUnknownTag},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeWord(tc.word)
			if !errors.Is(err, tc.err) {
				t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
			}
			if got != tc.want {
				t.Fatalf("invalid sample: got=%+v, want=%+v", got, tc.want)
			}
		})
	}
}

func TestDecodeWordLaw(t *testing.T) {
	for w := uint32(0); w <= wordMask; w += 7919 {
		v := int32((w >> 3) & 0x3FFFF)
		if v >= 1<<17 {
			v -= 1 << 18
		}
		s, err := DecodeWord(w)
		if got, want := s.Tag, Tag(w&0x7); got != want {
			t.Fatalf("word 0x%06X: invalid tag: got=%d, want=%d", w, got, want)
		}
		if got := s.Value; got != v {
			t.Fatalf("word 0x%06X: invalid value: got=%d, want=%d", w, got, v)
		}
		if known := s.Tag.Known(); known != (err == nil) {
			t.Fatalf("word 0x%06X: known=%v, err=%v", w, known, err)
		}
	}
}

func TestDecode(t *testing.T) {
	a := word(100, TagValid)
	b := word(-100, TagValidFast)
	c := word(7, TagLastValid)

	for _, tc := range []struct {
		name string
		raw  []byte
		want []Sample
		term Terminal
		err  error
	}{
		{
			name: "no data",
			raw:  nil,
			term: TerminalNone,
		},
		{
			name: "full-burst",
			raw:  words(a, b, c),
			want: []Sample{{100, TagValid}, {-100, TagValidFast}, {7, TagLastValid}},
			term: TerminalNone,
		},
		{
			name: "empty-first",
			raw:  words(0x000006, a, b),
			term: TerminalEmpty,
		},
		{
			name: "empty-at-2",
			raw:  words(a, c, 0x000006, 0x000006),
			want: []Sample{{100, TagValid}, {7, TagLastValid}},
			term: TerminalEmpty,
		},
		{
			name: "empty-then-garbage",
			raw:  words(a, 0x000006, 0x000004, b),
			want: []Sample{{100, TagValid}},
			term: TerminalEmpty,
		},
		{
			name: "overflow-at-1",
			raw:  words(b, 0x000007, a),
			want: []Sample{{-100, TagValidFast}},
			term: TerminalOverflow,
		},
		{
			name: "unknown-tag",
			raw:  words(a, 0x000005, b),
			want: []Sample{{100, TagValid}},
			err:  ErrUnknownTag,
		},
		{
			name: "truncated",
			raw:  append(words(a), 0x00, 0x01),
			want: []Sample{{100, TagValid}},
			err:  ErrTruncatedWord,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, term, err := Decode(tc.raw)
			if !errors.Is(err, tc.err) {
				t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
			}
			if term != tc.term {
				t.Fatalf("invalid terminal: got=%v, want=%v", term, tc.term)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("invalid number of samples: got=%d, want=%d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("sample[%d]: got=%+v, want=%+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestDecoderStops(t *testing.T) {
	dec := NewDecoder(words(word(1, TagValid), 0x000007, word(2, TagValid)))
	if !dec.Next() {
		t.Fatalf("expected a first sample")
	}
	if got := dec.Sample(); got != (Sample{1, TagValid}) {
		t.Fatalf("invalid sample: %+v", got)
	}
	for i := 0; i < 3; i++ {
		if dec.Next() {
			t.Fatalf("decoder yielded a sample past the overflow tag: %+v", dec.Sample())
		}
	}
	if got, want := dec.Terminal(), TerminalOverflow; got != want {
		t.Fatalf("invalid terminal: got=%v, want=%v", got, want)
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
}

func TestSampleFlags(t *testing.T) {
	for _, tc := range []struct {
		tag        Tag
		fast, last bool
	}{
		{TagValid, false, false},
		{TagValidFast, true, false},
		{TagLastValid, false, true},
		{TagLastValidFast, true, true},
	} {
		s := Sample{Tag: tc.tag}
		if s.Fast() != tc.fast || s.Last() != tc.last {
			t.Errorf("%v: fast=%v last=%v", tc.tag, s.Fast(), s.Last())
		}
	}
	if got, want := Tag(4).String(), "Tag(4)"; got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}
