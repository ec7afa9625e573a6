package max30003

import (
	"fmt"
	"sort"
)

// Access describes how a register may be used over the bus.
type Access uint8

const (
	ReadOnly Access = iota
	ReadWrite
	WriteOnly
	// SelfClearing registers are command strobes: any write triggers the
	// command and the register always reads back as zero.
	SelfClearing
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "RO"
	case ReadWrite:
		return "RW"
	case WriteOnly:
		return "WO"
	case SelfClearing:
		return "SC"
	}
	return fmt.Sprintf("Access(%d)", uint8(a))
}

// Field is a contiguous run of bits within a 24-bit register word.
type Field struct {
	Name   string
	Offset uint8
	Width  uint8
}

func (f Field) max() uint32 {
	return uint32(1)<<f.Width - 1
}

// Mask returns the bits of the word covered by f.
func (f Field) Mask() uint32 {
	return f.max() << f.Offset
}

// Get extracts the field value from word.
func (f Field) Get(word uint32) uint32 {
	return (word >> f.Offset) & f.max()
}

// Put returns word with the field replaced by v.
func (f Field) Put(word, v uint32) (uint32, error) {
	if v > f.max() {
		return word, fmt.Errorf("%w: %s=%d does not fit in %d bits", ErrInvalidFieldValue, f.Name, v, f.Width)
	}
	return word&^f.Mask() | v<<f.Offset, nil
}

func (f Field) isSet(word uint32) bool {
	return word&f.Mask() != 0
}

func (f Field) set(word uint32, on bool) uint32 {
	if on {
		return word | f.Mask()
	}
	return word &^ f.Mask()
}

// Values holds decoded field values keyed by field name.
type Values map[string]uint32

// Register describes one entry of the register map.
type Register struct {
	Name   string
	Addr   Reg
	Access Access
	Fields []Field
}

// Readable reports whether the register can be read back.
func (r Register) Readable() bool {
	return r.Access == ReadOnly || r.Access == ReadWrite
}

// Writable reports whether the register accepts writes.
func (r Register) Writable() bool {
	return r.Access != ReadOnly
}

// Mask returns the union of all defined field bits.
func (r Register) Mask() uint32 {
	var m uint32
	for _, f := range r.Fields {
		m |= f.Mask()
	}
	return m
}

// Field returns the field called name.
func (r Register) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Decode splits a raw word into its named fields. Bits outside of the
// defined fields are dropped.
func (r Register) Decode(word uint32) Values {
	v := make(Values, len(r.Fields))
	for _, f := range r.Fields {
		v[f.Name] = f.Get(word)
	}
	return v
}

// Encode packs named field values into a raw word. Fields absent from v
// are zero.
func (r Register) Encode(v Values) (uint32, error) {
	var word uint32
	for name, val := range v {
		f, ok := r.Field(name)
		if !ok {
			return 0, fmt.Errorf("%w: %s has no field %q", ErrInvalidFieldValue, r.Name, name)
		}
		var err error
		if word, err = f.Put(word, val); err != nil {
			return 0, err
		}
	}
	return word, nil
}

func (r Register) String() string {
	return fmt.Sprintf("%s(0x%02X)", r.Name, uint8(r.Addr))
}

// StatusFields are the bits of STATUS.
var StatusFields = struct {
	LdoffNL, LdoffNH, LdoffPL, LdoffPH Field
	PLLInt, Samp, RRInt, LonInt        Field
	DCLoffInt, FSInt, EOVF, EInt       Field
}{
	LdoffNL:   Field{"LDOFF_NL", 0, 1},
	LdoffNH:   Field{"LDOFF_NH", 1, 1},
	LdoffPL:   Field{"LDOFF_PL", 2, 1},
	LdoffPH:   Field{"LDOFF_PH", 3, 1},
	PLLInt:    Field{"PLLINT", 4, 1},
	Samp:      Field{"SAMP", 5, 1},
	RRInt:     Field{"RRINT", 6, 1},
	LonInt:    Field{"LONINT", 7, 1},
	DCLoffInt: Field{"DCLOFFINT", 20, 1},
	FSInt:     Field{"FSINT", 21, 1},
	EOVF:      Field{"EOVF", 22, 1},
	EInt:      Field{"EINT", 23, 1},
}

// EnIntFields are the bits of EN_INT and EN_INT_2. Each enable sits on
// the bit of the STATUS flag it routes to the interrupt pin.
var EnIntFields = struct {
	IntbType                              Field
	EnPLLInt, EnSamp, EnRRInt, EnLonInt   Field
	EnDCLoffInt, EnFSTInt, EnEOVF, EnEInt Field
}{
	IntbType:    Field{"INTB_TYPE", 0, 2},
	EnPLLInt:    Field{"EN_PLLINT", 4, 1},
	EnSamp:      Field{"EN_SAMP", 5, 1},
	EnRRInt:     Field{"EN_RRINT", 6, 1},
	EnLonInt:    Field{"EN_LONINT", 7, 1},
	EnDCLoffInt: Field{"EN_DCLOFFINT", 20, 1},
	EnFSTInt:    Field{"EN_FSTINT", 21, 1},
	EnEOVF:      Field{"EN_EOVF", 22, 1},
	EnEInt:      Field{"EN_EINT", 23, 1},
}

// MngrIntFields are the bits of MNGR_INT.
var MngrIntFields = struct {
	EFIT, ClrFast, ClrRRInt, ClrSamp, SampIT Field
}{
	EFIT:     Field{"EFIT", 19, 5},
	ClrFast:  Field{"CLR_FAST", 6, 1},
	ClrRRInt: Field{"CLR_RRINT", 4, 2},
	ClrSamp:  Field{"CLR_SAMP", 2, 1},
	SampIT:   Field{"SAMP_IT", 0, 2},
}

// MngrDynFields are the bits of MNGR_DYN.
var MngrDynFields = struct {
	Fast, FastTh Field
}{
	Fast:   Field{"FAST", 22, 2},
	FastTh: Field{"FAST_TH", 16, 6},
}

// InfoFields are the bits of INFO.
var InfoFields = struct {
	Ident, RevID Field
}{
	Ident: Field{"IDENT", 20, 4},
	RevID: Field{"REV_ID", 16, 4},
}

// CnfgGenFields are the bits of CNFG_GEN.
var CnfgGenFields = struct {
	EnULPLon, Fmstr, EnECG, EnDCLoff Field
	IPol, IMag, VTh                  Field
	EnRBias, RBiasV, RBiasP, RBiasN  Field
}{
	EnULPLon: Field{"EN_ULP_LON", 22, 2},
	Fmstr:    Field{"FMSTR", 20, 2},
	EnECG:    Field{"EN_ECG", 19, 1},
	EnDCLoff: Field{"EN_DCLOFF", 12, 2},
	IPol:     Field{"IPOL", 11, 1},
	IMag:     Field{"IMAG", 8, 3},
	VTh:      Field{"VTH", 6, 2},
	EnRBias:  Field{"EN_RBIAS", 4, 2},
	RBiasV:   Field{"RBIASV", 2, 2},
	RBiasP:   Field{"RBIASP", 1, 1},
	RBiasN:   Field{"RBIASN", 0, 1},
}

// CnfgCalFields are the bits of CNFG_CAL.
var CnfgCalFields = struct {
	EnVCal, VMode, VMag, FCal, Fifty, THigh Field
}{
	EnVCal: Field{"EN_VCAL", 22, 1},
	VMode:  Field{"VMODE", 21, 1},
	VMag:   Field{"VMAG", 20, 1},
	FCal:   Field{"FCAL", 12, 3},
	Fifty:  Field{"FIFTY", 11, 1},
	THigh:  Field{"THIGH", 0, 11},
}

// CnfgEmuxFields are the bits of CNFG_EMUX.
var CnfgEmuxFields = struct {
	Pol, OpenP, OpenN, CalPSel, CalNSel Field
}{
	Pol:     Field{"POL", 23, 1},
	OpenP:   Field{"OPENP", 21, 1},
	OpenN:   Field{"OPENN", 20, 1},
	CalPSel: Field{"CALP_SEL", 18, 2},
	CalNSel: Field{"CALN_SEL", 16, 2},
}

// CnfgECGFields are the bits of CNFG_ECG.
var CnfgECGFields = struct {
	Rate, Gain, DHPF, DLPF Field
}{
	Rate: Field{"RATE", 22, 2},
	Gain: Field{"GAIN", 16, 2},
	DHPF: Field{"DHPF", 14, 1},
	DLPF: Field{"DLPF", 12, 2},
}

// CnfgRtoR1Fields are the bits of CNFG_RTOR1.
var CnfgRtoR1Fields = struct {
	Wndw, Gain, EnRtoR, PAvg, PTsf Field
}{
	Wndw:   Field{"WNDW", 20, 4},
	Gain:   Field{"RGAIN", 16, 4},
	EnRtoR: Field{"EN_RTOR", 15, 1},
	PAvg:   Field{"PAVG", 12, 2},
	PTsf:   Field{"PTSF", 8, 4},
}

// CnfgRtoR2Fields are the bits of CNFG_RTOR2.
var CnfgRtoR2Fields = struct {
	HOff, RAvg, RHsf Field
}{
	HOff: Field{"HOFF", 16, 6},
	RAvg: Field{"RAVG", 12, 2},
	RHsf: Field{"RHSF", 8, 3},
}

// RtoRFields are the bits of RTOR.
var RtoRFields = struct {
	Interval Field
}{
	Interval: Field{"RTOR", 10, 14},
}

// FIFOFields are the bits of a word read from ECG_FIFO or ECG_FIFO_BURST.
var FIFOFields = struct {
	Sample, ETag Field
}{
	Sample: Field{"ECG_SAMPLE", 3, 18},
	ETag:   Field{"ETAG", 0, 3},
}

var registers = map[Reg]Register{
	RegStatus: {"STATUS", RegStatus, ReadOnly, []Field{
		StatusFields.LdoffNL, StatusFields.LdoffNH, StatusFields.LdoffPL, StatusFields.LdoffPH,
		StatusFields.PLLInt, StatusFields.Samp, StatusFields.RRInt, StatusFields.LonInt,
		StatusFields.DCLoffInt, StatusFields.FSInt, StatusFields.EOVF, StatusFields.EInt,
	}},
	RegEnInt:   {"EN_INT", RegEnInt, ReadWrite, enIntFields()},
	RegEnInt2:  {"EN_INT_2", RegEnInt2, ReadWrite, enIntFields()},
	RegMngrInt: {"MNGR_INT", RegMngrInt, ReadWrite, []Field{
		MngrIntFields.EFIT, MngrIntFields.ClrFast, MngrIntFields.ClrRRInt,
		MngrIntFields.ClrSamp, MngrIntFields.SampIT,
	}},
	RegMngrDyn: {"MNGR_DYN", RegMngrDyn, ReadWrite, []Field{
		MngrDynFields.Fast, MngrDynFields.FastTh,
	}},
	RegSwRst:   {"SW_RST", RegSwRst, SelfClearing, nil},
	RegSynch:   {"SYNCH", RegSynch, SelfClearing, nil},
	RegFIFORst: {"FIFO_RST", RegFIFORst, SelfClearing, nil},
	RegInfo: {"INFO", RegInfo, ReadOnly, []Field{
		InfoFields.Ident, InfoFields.RevID,
	}},
	RegCnfgGen: {"CNFG_GEN", RegCnfgGen, ReadWrite, []Field{
		CnfgGenFields.EnULPLon, CnfgGenFields.Fmstr, CnfgGenFields.EnECG, CnfgGenFields.EnDCLoff,
		CnfgGenFields.IPol, CnfgGenFields.IMag, CnfgGenFields.VTh,
		CnfgGenFields.EnRBias, CnfgGenFields.RBiasV, CnfgGenFields.RBiasP, CnfgGenFields.RBiasN,
	}},
	RegCnfgCal: {"CNFG_CAL", RegCnfgCal, ReadWrite, []Field{
		CnfgCalFields.EnVCal, CnfgCalFields.VMode, CnfgCalFields.VMag,
		CnfgCalFields.FCal, CnfgCalFields.Fifty, CnfgCalFields.THigh,
	}},
	RegCnfgEmux: {"CNFG_EMUX", RegCnfgEmux, ReadWrite, []Field{
		CnfgEmuxFields.Pol, CnfgEmuxFields.OpenP, CnfgEmuxFields.OpenN,
		CnfgEmuxFields.CalPSel, CnfgEmuxFields.CalNSel,
	}},
	RegCnfgECG: {"CNFG_ECG", RegCnfgECG, ReadWrite, []Field{
		CnfgECGFields.Rate, CnfgECGFields.Gain, CnfgECGFields.DHPF, CnfgECGFields.DLPF,
	}},
	RegCnfgRtoR1: {"CNFG_RTOR1", RegCnfgRtoR1, ReadWrite, []Field{
		CnfgRtoR1Fields.Wndw, CnfgRtoR1Fields.Gain, CnfgRtoR1Fields.EnRtoR,
		CnfgRtoR1Fields.PAvg, CnfgRtoR1Fields.PTsf,
	}},
	RegCnfgRtoR2: {"CNFG_RTOR2", RegCnfgRtoR2, ReadWrite, []Field{
		CnfgRtoR2Fields.HOff, CnfgRtoR2Fields.RAvg, CnfgRtoR2Fields.RHsf,
	}},
	RegECGFIFOBurst: {"ECG_FIFO_BURST", RegECGFIFOBurst, ReadOnly, []Field{
		FIFOFields.Sample, FIFOFields.ETag,
	}},
	RegECGFIFO: {"ECG_FIFO", RegECGFIFO, ReadOnly, []Field{
		FIFOFields.Sample, FIFOFields.ETag,
	}},
	RegRtoR: {"RTOR", RegRtoR, ReadOnly, []Field{
		RtoRFields.Interval,
	}},
}

func enIntFields() []Field {
	return []Field{
		EnIntFields.IntbType,
		EnIntFields.EnPLLInt, EnIntFields.EnSamp, EnIntFields.EnRRInt, EnIntFields.EnLonInt,
		EnIntFields.EnDCLoffInt, EnIntFields.EnFSTInt, EnIntFields.EnEOVF, EnIntFields.EnEInt,
	}
}

// Lookup returns a copy of the register map entry at addr.
func Lookup(addr Reg) (Register, error) {
	r, err := entry(addr)
	if err != nil {
		return Register{}, err
	}
	return r.clone(), nil
}

// entry returns the map entry at addr. Its Fields must not be modified.
func entry(addr Reg) (Register, error) {
	r, ok := registers[addr]
	if !ok {
		return Register{}, fmt.Errorf("%w: 0x%02X", ErrUnknownRegister, uint8(addr))
	}
	return r, nil
}

// LookupName returns a copy of the register map entry called name.
func LookupName(name string) (Register, error) {
	for _, r := range registers {
		if r.Name == name {
			return r.clone(), nil
		}
	}
	return Register{}, fmt.Errorf("%w: %q", ErrUnknownRegister, name)
}

// Registers returns a copy of the register map ordered by address.
func Registers() []Register {
	regs := make([]Register, 0, len(registers))
	for _, r := range registers {
		regs = append(regs, r.clone())
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Addr < regs[j].Addr
	})
	return regs
}

func (r Register) clone() Register {
	if r.Fields != nil {
		r.Fields = append([]Field(nil), r.Fields...)
	}
	return r
}

// Status is a decoded STATUS snapshot. Reading STATUS does not clear the
// latched flags.
type Status struct {
	LeadOffNL     bool // DC lead-off, ECGN below threshold
	LeadOffNH     bool // DC lead-off, ECGN above threshold
	LeadOffPL     bool // DC lead-off, ECGP below threshold
	LeadOffPH     bool // DC lead-off, ECGP above threshold
	PLLUnlocked   bool
	SampleSync    bool
	RtoR          bool // R event detected
	LeadsOn       bool // ultra-low power leads-on detected
	DCLeadOff     bool
	FastRecovery  bool
	FIFOOverflow  bool
	FIFOInterrupt bool
}

// DecodeStatus decodes a STATUS word.
func DecodeStatus(word uint32) Status {
	f := StatusFields
	return Status{
		LeadOffNL:     f.LdoffNL.isSet(word),
		LeadOffNH:     f.LdoffNH.isSet(word),
		LeadOffPL:     f.LdoffPL.isSet(word),
		LeadOffPH:     f.LdoffPH.isSet(word),
		PLLUnlocked:   f.PLLInt.isSet(word),
		SampleSync:    f.Samp.isSet(word),
		RtoR:          f.RRInt.isSet(word),
		LeadsOn:       f.LonInt.isSet(word),
		DCLeadOff:     f.DCLoffInt.isSet(word),
		FastRecovery:  f.FSInt.isSet(word),
		FIFOOverflow:  f.EOVF.isSet(word),
		FIFOInterrupt: f.EInt.isSet(word),
	}
}

// Word encodes s back into a STATUS word.
func (s Status) Word() uint32 {
	f := StatusFields
	var w uint32
	w = f.LdoffNL.set(w, s.LeadOffNL)
	w = f.LdoffNH.set(w, s.LeadOffNH)
	w = f.LdoffPL.set(w, s.LeadOffPL)
	w = f.LdoffPH.set(w, s.LeadOffPH)
	w = f.PLLInt.set(w, s.PLLUnlocked)
	w = f.Samp.set(w, s.SampleSync)
	w = f.RRInt.set(w, s.RtoR)
	w = f.LonInt.set(w, s.LeadsOn)
	w = f.DCLoffInt.set(w, s.DCLeadOff)
	w = f.FSInt.set(w, s.FastRecovery)
	w = f.EOVF.set(w, s.FIFOOverflow)
	w = f.EInt.set(w, s.FIFOInterrupt)
	return w
}

// LeadOff reports whether any electrode lost contact.
func (s Status) LeadOff() bool {
	return s.LeadOffNL || s.LeadOffNH || s.LeadOffPL || s.LeadOffPH || s.DCLeadOff
}

func (s Status) String() string {
	return fmt.Sprintf("status{eint=%t eovf=%t rrint=%t pll=%t leadoff=%t}",
		s.FIFOInterrupt, s.FIFOOverflow, s.RtoR, s.PLLUnlocked, s.LeadOff(),
	)
}

// Info is a decoded INFO word.
type Info struct {
	Ident    uint8
	Revision uint8
}

// DecodeInfo decodes an INFO word.
func DecodeInfo(word uint32) Info {
	return Info{
		Ident:    uint8(InfoFields.Ident.Get(word)),
		Revision: uint8(InfoFields.RevID.Get(word)),
	}
}

// Valid reports whether the identity nibble matches the chip family.
func (i Info) Valid() bool {
	return i.Ident == infoIdent
}
