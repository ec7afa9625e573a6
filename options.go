package max30003

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

const (
	defaultReadyRetries = 10
	defaultPollInterval = 10 * time.Millisecond
)

// Opts holds the acquisition configuration of the chip.
type Opts struct {
	// Frequency is the SPI clock. The chip accepts up to 12 MHz.
	Frequency physic.Frequency

	Clock MasterClock
	Rate  ECGRate
	Gain  ECGGain
	// HighPass enables the 0.5 Hz digital high-pass filter.
	HighPass bool
	LowPass  LowPass
	// InvertPolarity swaps the ECGP and ECGN inputs.
	InvertPolarity bool

	// SampleAverage is the number of R peaks averaged by the R-to-R
	// detector: 2, 4, 8 or 16.
	SampleAverage int
	// AlmostFull is the number of unread FIFO words (1 to 32) that raise
	// the FIFO interrupt.
	AlmostFull int
	// Rollover makes DrainFIFO reset the FIFO after an overflow so that
	// acquisition continues with fresh data instead of requiring a full
	// re-initialization.
	Rollover bool
	// RtoR enables the on-chip R-to-R detector.
	RtoR bool

	// LeadOffDetect enables DC lead-off detection (5 nA, 300 mV).
	LeadOffDetect bool
	// Bias enables the 100 MOhm resistive input bias on both inputs.
	Bias bool
	// Calibration disconnects the inputs and feeds them an internal
	// 0.5 mV, 1 Hz square wave.
	Calibration bool
	// AutoFastRecovery lets the chip enter fast recovery mode on its own
	// when the input saturates.
	AutoFastRecovery bool

	Interrupt InterruptType

	// ReadyRetries and PollInterval bound how long Initialize waits for
	// the chip to come out of reset.
	ReadyRetries int
	PollInterval time.Duration
}

// DefaultOptions returns the heart rate monitor preset.
func DefaultOptions() *Opts {
	return HeartRateMonitor()
}

// HeartRateMonitor returns a 128 sps, 80 V/V configuration with the R-to-R
// detector enabled.
func HeartRateMonitor() *Opts {
	return &Opts{
		Frequency:     4 * physic.MegaHertz,
		Clock:         Clock32768,
		Rate:          RateLow,
		Gain:          Gain80,
		HighPass:      true,
		LowPass:       LowPass40Hz,
		SampleAverage: 8,
		AlmostFull:    16,
		RtoR:          true,
		LeadOffDetect: true,
		Bias:          true,
		Interrupt:     IntOpenDrainPull,
		ReadyRetries:  defaultReadyRetries,
		PollInterval:  defaultPollInterval,
	}
}

// Diagnostic returns a 512 sps, 150 Hz bandwidth configuration for
// waveform capture. The R-to-R detector is disabled and the FIFO rolls
// over so that a slow reader only loses data instead of stalling.
func Diagnostic() *Opts {
	return &Opts{
		Frequency:     4 * physic.MegaHertz,
		Clock:         Clock32768,
		Rate:          RateHigh,
		Gain:          Gain40,
		HighPass:      true,
		LowPass:       LowPass150Hz,
		SampleAverage: 8,
		AlmostFull:    8,
		Rollover:      true,
		LeadOffDetect: true,
		Bias:          true,
		Interrupt:     IntOpenDrainPull,
		ReadyRetries:  defaultReadyRetries,
		PollInterval:  defaultPollInterval,
	}
}

// SampleRate returns the ECG output data rate in samples per second.
func (o Opts) SampleRate() float64 {
	return sampleRate(o.Clock, o.Rate)
}

func sampleRate(c MasterClock, r ECGRate) float64 {
	switch c {
	case Clock32768, Clock32000:
		if r > RateLow {
			return 0
		}
		return c.Hz() / float64(uint(64)<<r)
	case Clock32000Low, Clock31968:
		if r != RateLow {
			return 0
		}
		return c.Hz() / 160
	}
	return 0
}

type regWrite struct {
	reg  Reg
	word uint32
}

// words encodes o into the register writes Configure issues, general
// configuration first: the ECG rate is only meaningful for the master
// clock selected in CNFG_GEN.
func (o *Opts) words() ([]regWrite, error) {
	if o.Clock > Clock31968 {
		return nil, fmt.Errorf("%w: master clock %d", ErrInvalidFieldValue, o.Clock)
	}
	if sampleRate(o.Clock, o.Rate) == 0 {
		return nil, fmt.Errorf("%w: rate %d not available with master clock %d", ErrInvalidFieldValue, o.Rate, o.Clock)
	}
	pavg, err := peakAverage(o.SampleAverage)
	if err != nil {
		return nil, err
	}
	if o.AlmostFull < 1 || o.AlmostFull > fifoDepth {
		return nil, fmt.Errorf("%w: FIFO threshold %d out of [1, %d]", ErrInvalidFieldValue, o.AlmostFull, fifoDepth)
	}

	var (
		gen  uint32
		cal  uint32
		emux uint32
		ecg  uint32
		r1   uint32
		r2   uint32
		mngr uint32
		dyn  uint32
		en   uint32
	)

	g := CnfgGenFields
	gen = g.EnECG.set(gen, true)
	if gen, err = g.Fmstr.Put(gen, uint32(o.Clock)); err != nil {
		return nil, err
	}
	if o.LeadOffDetect {
		gen, _ = g.EnDCLoff.Put(gen, 1)
		gen, _ = g.IMag.Put(gen, 1)
	}
	if o.Bias {
		gen, _ = g.EnRBias.Put(gen, 1)
		gen, _ = g.RBiasV.Put(gen, 1)
		gen = g.RBiasP.set(gen, true)
		gen = g.RBiasN.set(gen, true)
	}

	m := CnfgEmuxFields
	emux = m.Pol.set(emux, o.InvertPolarity)
	if o.Calibration {
		c := CnfgCalFields
		cal = c.EnVCal.set(cal, true)
		cal = c.VMode.set(cal, true)
		cal = c.VMag.set(cal, true)
		cal, _ = c.FCal.Put(cal, 3)
		cal = c.Fifty.set(cal, true)

		emux = m.OpenP.set(emux, true)
		emux = m.OpenN.set(emux, true)
		emux, _ = m.CalPSel.Put(emux, 2)
		emux, _ = m.CalNSel.Put(emux, 3)
	}

	e := CnfgECGFields
	if ecg, err = e.Rate.Put(ecg, uint32(o.Rate)); err != nil {
		return nil, err
	}
	if ecg, err = e.Gain.Put(ecg, uint32(o.Gain)); err != nil {
		return nil, err
	}
	ecg = e.DHPF.set(ecg, o.HighPass)
	if ecg, err = e.DLPF.Put(ecg, uint32(o.LowPass)); err != nil {
		return nil, err
	}

	// Detector tuning other than peak averaging keeps the datasheet
	// defaults.
	r := CnfgRtoR1Fields
	r1, _ = r.Wndw.Put(r1, 0b0011)
	r1, _ = r.Gain.Put(r1, 0b1111)
	r1 = r.EnRtoR.set(r1, o.RtoR)
	r1, _ = r.PAvg.Put(r1, pavg)
	r1, _ = r.PTsf.Put(r1, 0b0011)

	r2f := CnfgRtoR2Fields
	r2, _ = r2f.HOff.Put(r2, 0b100000)
	r2, _ = r2f.RAvg.Put(r2, 0b10)
	r2, _ = r2f.RHsf.Put(r2, 0b100)

	mi := MngrIntFields
	mngr, _ = mi.EFIT.Put(mngr, uint32(o.AlmostFull-1))
	// RRINT clears when RTOR is read. STATUS reads leave every flag latched.
	mngr, _ = mi.ClrRRInt.Put(mngr, 0b01)

	md := MngrDynFields
	if o.AutoFastRecovery {
		dyn, _ = md.Fast.Put(dyn, 0b10)
	}
	dyn, _ = md.FastTh.Put(dyn, 0x3F)

	ei := EnIntFields
	if en, err = ei.IntbType.Put(en, uint32(o.Interrupt)); err != nil {
		return nil, err
	}
	en = ei.EnEInt.set(en, true)
	en = ei.EnEOVF.set(en, true)
	en = ei.EnRRInt.set(en, o.RtoR)
	en = ei.EnDCLoffInt.set(en, o.LeadOffDetect)

	return []regWrite{
		{RegCnfgGen, gen},
		{RegCnfgCal, cal},
		{RegCnfgEmux, emux},
		{RegCnfgECG, ecg},
		{RegCnfgRtoR1, r1},
		{RegCnfgRtoR2, r2},
		{RegMngrInt, mngr},
		{RegMngrDyn, dyn},
		{RegEnInt, en},
		{RegEnInt2, 0},
	}, nil
}

func peakAverage(n int) (uint32, error) {
	switch n {
	case 2:
		return 0, nil
	case 4:
		return 1, nil
	case 8:
		return 2, nil
	case 16:
		return 3, nil
	}
	return 0, fmt.Errorf("%w: sample average %d, want 2, 4, 8 or 16", ErrInvalidFieldValue, n)
}
