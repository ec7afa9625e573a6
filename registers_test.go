package max30003

import (
	"errors"
	"math/rand"
	"testing"
)

func TestRegisterMap(t *testing.T) {
	for _, tc := range []struct {
		name   string
		addr   Reg
		access Access
	}{
		{"STATUS", 0x00, ReadOnly},
		{"EN_INT", 0x02, ReadWrite},
		{"EN_INT_2", 0x03, ReadWrite},
		{"MNGR_INT", 0x04, ReadWrite},
		{"MNGR_DYN", 0x05, ReadWrite},
		{"SW_RST", 0x08, SelfClearing},
		{"SYNCH", 0x09, SelfClearing},
		{"FIFO_RST", 0x0A, SelfClearing},
		{"INFO", 0x0F, ReadOnly},
		{"CNFG_GEN", 0x10, ReadWrite},
		{"CNFG_CAL", 0x12, ReadWrite},
		{"CNFG_EMUX", 0x14, ReadWrite},
		{"CNFG_ECG", 0x15, ReadWrite},
		{"CNFG_RTOR1", 0x1D, ReadWrite},
		{"CNFG_RTOR2", 0x1E, ReadWrite},
		{"ECG_FIFO_BURST", 0x20, ReadOnly},
		{"ECG_FIFO", 0x21, ReadOnly},
		{"RTOR", 0x25, ReadOnly},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Lookup(tc.addr)
			if err != nil {
				t.Fatalf("could not find register: %+v", err)
			}
			if r.Name != tc.name {
				t.Fatalf("invalid name: got=%q, want=%q", r.Name, tc.name)
			}
			if r.Access != tc.access {
				t.Fatalf("invalid access: got=%v, want=%v", r.Access, tc.access)
			}
			byName, err := LookupName(tc.name)
			if err != nil || byName.Addr != r.Addr {
				t.Fatalf("lookup by name: got=%v, err=%v", byName, err)
			}
		})
	}

	if got, want := len(Registers()), 18; got != want {
		t.Fatalf("invalid register count: got=%d, want=%d", got, want)
	}
	regs := Registers()
	for i := 1; i < len(regs); i++ {
		if regs[i-1].Addr >= regs[i].Addr {
			t.Fatalf("registers not sorted by address: %v before %v", regs[i-1], regs[i])
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, addr := range []Reg{0x01, 0x06, 0x11, 0x26, 0x7F} {
		if _, err := Lookup(addr); !errors.Is(err, ErrUnknownRegister) {
			t.Errorf("0x%02X: got=%v, want=%v", uint8(addr), err, ErrUnknownRegister)
		}
	}
	if _, err := LookupName("RTOR2"); !errors.Is(err, ErrUnknownRegister) {
		t.Errorf("got=%v, want=%v", err, ErrUnknownRegister)
	}
}

func TestLookupCopy(t *testing.T) {
	r, err := Lookup(RegStatus)
	if err != nil {
		t.Fatal(err)
	}
	r.Access = ReadWrite
	r.Fields[0] = Field{"X", 0, 24}

	again, err := Lookup(RegStatus)
	if err != nil {
		t.Fatal(err)
	}
	if again.Access != ReadOnly || again.Fields[0].Name != "LDOFF_NL" {
		t.Fatalf("register map modified through a lookup: %+v", again)
	}
	regs := Registers()
	regs[0].Access = ReadWrite
	if again, _ = Lookup(RegStatus); again.Writable() {
		t.Fatalf("register map modified through Registers")
	}

	d := newTestDev(t, nil)
	if err := d.WriteRegister(RegStatus, 0); !errors.Is(err, ErrReadOnlyRegister) {
		t.Fatalf("got=%v, want=%v", err, ErrReadOnlyRegister)
	}
}

func TestFieldsDoNotOverlap(t *testing.T) {
	for _, r := range Registers() {
		var seen uint32
		for _, f := range r.Fields {
			if f.Width == 0 || int(f.Offset)+int(f.Width) > 24 {
				t.Errorf("%v: field %s out of the 24-bit word", r, f.Name)
			}
			if seen&f.Mask() != 0 {
				t.Errorf("%v: field %s overlaps another field", r, f.Name)
			}
			seen |= f.Mask()
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1234))
	for _, r := range Registers() {
		mask := r.Mask()
		for i := 0; i < 256; i++ {
			x := rnd.Uint32() & mask
			got, err := r.Encode(r.Decode(x))
			if err != nil {
				t.Fatalf("%v: could not encode 0x%06X: %+v", r, x, err)
			}
			if got != x {
				t.Fatalf("%v: round trip: got=0x%06X, want=0x%06X", r, got, x)
			}
		}
	}
}

func TestEncodeInvalid(t *testing.T) {
	r, err := Lookup(RegCnfgECG)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name string
		v    Values
	}{
		{"too-wide", Values{"GAIN": 4}},
		{"unknown-field", Values{"EFIT": 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Encode(tc.v); !errors.Is(err, ErrInvalidFieldValue) {
				t.Fatalf("got=%v, want=%v", err, ErrInvalidFieldValue)
			}
		})
	}

	w, err := r.Encode(Values{"RATE": 2, "GAIN": 3, "DHPF": 1, "DLPF": 1})
	if err != nil {
		t.Fatalf("could not encode: %+v", err)
	}
	if got, want := w, uint32(0x835000); got != want {
		t.Fatalf("got=0x%06X, want=0x%06X", got, want)
	}
}

func TestFieldPut(t *testing.T) {
	f := MngrIntFields.EFIT
	w, err := f.Put(0xFFFFFF, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := w, uint32(0x07FFFF); got != want {
		t.Fatalf("got=0x%06X, want=0x%06X", got, want)
	}
	if _, err := f.Put(0, 32); !errors.Is(err, ErrInvalidFieldValue) {
		t.Fatalf("got=%v, want=%v", err, ErrInvalidFieldValue)
	}
	if got, want := f.Get(0xF80000), uint32(31); got != want {
		t.Fatalf("got=%d, want=%d", got, want)
	}
}

func TestStatus(t *testing.T) {
	for _, tc := range []struct {
		bit  uint
		flag func(Status) bool
	}{
		{0, func(s Status) bool { return s.LeadOffNL }},
		{1, func(s Status) bool { return s.LeadOffNH }},
		{2, func(s Status) bool { return s.LeadOffPL }},
		{3, func(s Status) bool { return s.LeadOffPH }},
		{4, func(s Status) bool { return s.PLLUnlocked }},
		{5, func(s Status) bool { return s.SampleSync }},
		{6, func(s Status) bool { return s.RtoR }},
		{7, func(s Status) bool { return s.LeadsOn }},
		{20, func(s Status) bool { return s.DCLeadOff }},
		{21, func(s Status) bool { return s.FastRecovery }},
		{22, func(s Status) bool { return s.FIFOOverflow }},
		{23, func(s Status) bool { return s.FIFOInterrupt }},
	} {
		w := uint32(1) << tc.bit
		s := DecodeStatus(w)
		if !tc.flag(s) {
			t.Errorf("bit %d: flag not set in %+v", tc.bit, s)
		}
		if s.Word() != w {
			t.Errorf("bit %d: round trip: got=0x%06X", tc.bit, s.Word())
		}
	}

	s := DecodeStatus(0xFFFFFF)
	if got, want := s.Word(), uint32(0xF000FF); got != want {
		t.Fatalf("got=0x%06X, want=0x%06X", got, want)
	}
	if !DecodeStatus(0x000004).LeadOff() || DecodeStatus(0x800000).LeadOff() {
		t.Fatalf("invalid lead-off summary")
	}
}

func TestInfo(t *testing.T) {
	i := DecodeInfo(0x53ABCD)
	if !i.Valid() || i.Revision != 3 {
		t.Fatalf("invalid info: %+v", i)
	}
	if DecodeInfo(0xFFFFFF).Valid() || DecodeInfo(0).Valid() {
		t.Fatalf("floating bus decoded as a valid chip")
	}
}
