package max30003

// Reg is a register address.
type Reg uint8

// Register addresses
const (
	RegStatus       Reg = 0x00
	RegEnInt        Reg = 0x02
	RegEnInt2       Reg = 0x03
	RegMngrInt      Reg = 0x04
	RegMngrDyn      Reg = 0x05
	RegSwRst        Reg = 0x08
	RegSynch        Reg = 0x09
	RegFIFORst      Reg = 0x0A
	RegInfo         Reg = 0x0F
	RegCnfgGen      Reg = 0x10
	RegCnfgCal      Reg = 0x12
	RegCnfgEmux     Reg = 0x14
	RegCnfgECG      Reg = 0x15
	RegCnfgRtoR1    Reg = 0x1D
	RegCnfgRtoR2    Reg = 0x1E
	RegECGFIFOBurst Reg = 0x20
	RegECGFIFO      Reg = 0x21
	RegRtoR         Reg = 0x25
)

// SPI command byte: the register address shifted left one bit, with the
// R/W flag in bit 0.
const (
	cmdRead  uint8 = 0x01
	cmdWrite uint8 = 0x00
)

const (
	wordBytes = 3
	wordMask  = 0xFFFFFF

	// fifoDepth is the number of words held by the ECG FIFO.
	fifoDepth = 32

	// infoIdent is the fixed value of INFO[23:20].
	infoIdent = 0b0101
)

// MasterClock selects the FMSTR field of CNFG_GEN.
type MasterClock uint8

const (
	Clock32768 MasterClock = iota // 32768 Hz, 512/256/128 sps
	Clock32000                    // 32000 Hz, 500/250/125 sps
	Clock32000Low                 // 32000 Hz, 200 sps
	Clock31968                    // 31968.78 Hz, 199.8 sps
)

// Hz returns the master clock frequency.
func (c MasterClock) Hz() float64 {
	switch c {
	case Clock32768:
		return 32768
	case Clock32000, Clock32000Low:
		return 32000
	case Clock31968:
		return 31968.78
	}
	return 0
}

// ECGRate selects the RATE field of CNFG_ECG. The resulting sample rate
// depends on the master clock.
type ECGRate uint8

const (
	RateHigh   ECGRate = iota // 512 or 500 sps
	RateMedium                // 256 or 250 sps
	RateLow                   // 128, 125, 200 or 199.8 sps
)

// ECGGain selects the GAIN field of CNFG_ECG.
type ECGGain uint8

const (
	Gain20 ECGGain = iota // 20 V/V
	Gain40                // 40 V/V
	Gain80                // 80 V/V
	Gain160               // 160 V/V
)

// LowPass selects the DLPF field of CNFG_ECG.
type LowPass uint8

const (
	LowPassBypass LowPass = iota
	LowPass40Hz
	LowPass100Hz
	LowPass150Hz
)

// InterruptType selects the INTB_TYPE field of EN_INT and EN_INT_2.
type InterruptType uint8

const (
	IntDisabled      InterruptType = iota // three-state
	IntCMOS                               // CMOS driver
	IntOpenDrain                          // open-drain NMOS
	IntOpenDrainPull                      // open-drain NMOS with 125 kOhm pullup
)
