package max30003

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// State is the lifecycle state of a device.
type State uint8

const (
	StateUninitialized State = iota
	StateConfigured
	StateAcquiring
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateAcquiring:
		return "acquiring"
	case StateShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// New connects to a MAX30003 on the SPI port p. The device starts
// uninitialized; call Initialize, Configure and Synchronize before reading
// samples.
func New(p spi.Port, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	c, err := p.Connect(opts.Frequency, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("max30003: %w", err)
	}
	d := NewConn(c, opts)
	d.name = p.String()
	return d, nil
}

// NewConn returns a device using an already connected transport. The
// connection must select the chip and run in SPI mode 0.
func NewConn(c conn.Conn, opts *Opts) *Dev {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Dev{
		c:    c,
		opts: *opts,
		name: c.String(),
	}
}

// Dev is a handle to one MAX30003 chip.
//
// All methods are safe for concurrent use; every bus transaction runs to
// completion before the next one starts.
type Dev struct {
	c    conn.Conn
	name string
	intb gpio.PinIn

	mu     sync.Mutex
	opts   Opts
	state  State
	status Status

	streamMu sync.Mutex
	stop     chan struct{}
	wg       sync.WaitGroup
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.c)
}

// State returns the lifecycle state of the device.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Opts returns the configuration currently in effect.
func (d *Dev) Opts() Opts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts
}

// LastStatus returns the last STATUS snapshot read from the chip.
func (d *Dev) LastStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Initialize issues a software reset and waits for the chip to come back
// up: INFO must carry the chip identity and the PLL must be locked. It
// fails with ErrInitializationTimeout once Opts.ReadyRetries attempts
// are exhausted, in which case it may be called again.
func (d *Dev) Initialize() error {
	d.Halt()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writeRegister(RegSwRst, 0); err != nil {
		return d.wrap(err)
	}
	d.state = StateUninitialized

	retries := d.opts.ReadyRetries
	if retries <= 0 {
		retries = defaultReadyRetries
	}
	for i := 0; i < retries; i++ {
		if i > 0 {
			time.Sleep(d.opts.PollInterval)
		}
		ok, err := d.ready()
		if err != nil {
			return d.wrap(err)
		}
		if ok {
			d.state = StateConfigured
			return nil
		}
	}
	return d.wrap(fmt.Errorf("%w: chip not ready after %d attempts", ErrInitializationTimeout, retries))
}

func (d *Dev) ready() (bool, error) {
	w, err := d.readRegister(RegInfo)
	if err != nil {
		return false, err
	}
	if !DecodeInfo(w).Valid() {
		return false, nil
	}
	if w, err = d.readRegister(RegStatus); err != nil {
		return false, err
	}
	d.status = DecodeStatus(w)
	return !d.status.PLLUnlocked, nil
}

// Configure writes the acquisition configuration. A nil opts re-applies
// the current one. It is only valid right after Initialize; every value
// is validated before the first write, and the device state is updated
// only once all writes succeeded.
func (d *Dev) Configure(opts *Opts) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateConfigured {
		return d.wrap(fmt.Errorf("%w: cannot configure while %v", ErrInvalidState, d.state))
	}
	o := d.opts
	if opts != nil {
		o = *opts
	}
	writes, err := o.words()
	if err != nil {
		return d.wrap(err)
	}
	for _, w := range writes {
		if err := d.writeRegister(w.reg, w.word); err != nil {
			return d.wrap(err)
		}
	}
	d.opts = o
	return nil
}

// Synchronize restarts the internal sample clock, which also clears the
// FIFO, and starts acquisition. It may be called again while acquiring to
// resynchronize: samples not yet drained are then discarded.
func (d *Dev) Synchronize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateConfigured, StateAcquiring:
	default:
		return d.wrap(fmt.Errorf("%w: cannot synchronize while %v", ErrInvalidState, d.state))
	}
	if err := d.writeRegister(RegSynch, 0); err != nil {
		return d.wrap(err)
	}
	d.state = StateAcquiring
	return nil
}

// ReadStatus reads and decodes STATUS. It is valid in any state.
func (d *Dev) ReadStatus() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, err := d.readRegister(RegStatus)
	if err != nil {
		return Status{}, d.wrap(err)
	}
	d.status = DecodeStatus(w)
	return d.status, nil
}

// Info reads and decodes INFO.
func (d *Dev) Info() (Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, err := d.readRegister(RegInfo)
	if err != nil {
		return Info{}, d.wrap(err)
	}
	return DecodeInfo(w), nil
}

// DrainFIFO reads up to maxSamples words from the FIFO in one burst and
// returns the samples in FIFO order along with the condition that ended
// the burst. maxSamples must be between 1 and the FIFO depth (32).
// TerminalOverflow means data was lost: unless Opts.Rollover is set the
// caller should Reset and Initialize the device.
func (d *Dev) DrainFIFO(maxSamples int) ([]Sample, Terminal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drain(maxSamples)
}

func (d *Dev) drain(n int) ([]Sample, Terminal, error) {
	if d.state != StateAcquiring {
		return nil, TerminalNone, d.wrap(fmt.Errorf("%w: cannot drain FIFO while %v", ErrInvalidState, d.state))
	}
	if n < 1 || n > fifoDepth {
		return nil, TerminalNone, d.wrap(fmt.Errorf("%w: burst of %d words, want 1 to %d", ErrInvalidFieldValue, n, fifoDepth))
	}
	raw, err := d.burstRead(RegECGFIFOBurst, n)
	if err != nil {
		return nil, TerminalNone, d.wrap(err)
	}
	samples, term, err := Decode(raw)
	if err != nil {
		return samples, term, d.wrap(err)
	}
	if term == TerminalOverflow && d.opts.Rollover {
		if err := d.writeRegister(RegFIFORst, 0); err != nil {
			return samples, term, d.wrap(err)
		}
	}
	return samples, term, nil
}

// ReadSample reads a single FIFO word. Unlike DrainFIFO, TagEmpty and
// TagOverflow words are returned as samples.
func (d *Dev) ReadSample() (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAcquiring {
		return Sample{}, d.wrap(fmt.Errorf("%w: cannot read FIFO while %v", ErrInvalidState, d.state))
	}
	w, err := d.readRegister(RegECGFIFO)
	if err != nil {
		return Sample{}, d.wrap(err)
	}
	s, err := DecodeWord(w)
	if err != nil {
		return s, d.wrap(err)
	}
	return s, nil
}

// ResetFIFO discards the FIFO content and clears the overflow condition.
func (d *Dev) ResetFIFO() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAcquiring {
		return d.wrap(fmt.Errorf("%w: cannot reset FIFO while %v", ErrInvalidState, d.state))
	}
	if err := d.writeRegister(RegFIFORst, 0); err != nil {
		return d.wrap(err)
	}
	return nil
}

// RtoR is an R-to-R interval measured by the chip.
type RtoR struct {
	Ticks    uint16
	Interval time.Duration
}

// DecodeRtoR decodes an RTOR word. One tick is 256 master clock periods.
func DecodeRtoR(word uint32, c MasterClock) RtoR {
	ticks := RtoRFields.Interval.Get(word)
	r := RtoR{Ticks: uint16(ticks)}
	if hz := c.Hz(); hz > 0 {
		r.Interval = time.Duration(float64(ticks) * 256 / hz * float64(time.Second))
	}
	return r
}

// BPM returns the instantaneous heart rate, or 0 when no interval has
// been measured yet.
func (r RtoR) BPM() float64 {
	if r.Interval <= 0 {
		return 0
	}
	return 60 / r.Interval.Seconds()
}

// ReadRtoR reads the last R-to-R interval.
func (d *Dev) ReadRtoR() (RtoR, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAcquiring {
		return RtoR{}, d.wrap(fmt.Errorf("%w: cannot read R-to-R while %v", ErrInvalidState, d.state))
	}
	w, err := d.readRegister(RegRtoR)
	if err != nil {
		return RtoR{}, d.wrap(err)
	}
	return DecodeRtoR(w, d.opts.Clock), nil
}

// NextRtoR reads STATUS and, when the detector flagged a new R event,
// the interval that ended with it. ok is false when no beat happened since
// the previous call; RRINT clears when RTOR is read.
func (d *Dev) NextRtoR() (r RtoR, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAcquiring {
		return RtoR{}, false, d.wrap(fmt.Errorf("%w: cannot read R-to-R while %v", ErrInvalidState, d.state))
	}
	w, err := d.readRegister(RegStatus)
	if err != nil {
		return RtoR{}, false, d.wrap(err)
	}
	d.status = DecodeStatus(w)
	if !d.status.RtoR {
		return RtoR{}, false, nil
	}
	if w, err = d.readRegister(RegRtoR); err != nil {
		return RtoR{}, false, d.wrap(err)
	}
	return DecodeRtoR(w, d.opts.Clock), true, nil
}

// Reset forgets the device state without touching the bus. Initialize
// must be called before the device can be used again. It is the expected
// reaction to TerminalOverflow or ErrUnknownTag.
func (d *Dev) Reset() {
	d.Halt()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateUninitialized
	d.status = Status{}
}

// Shutdown powers down the ECG channel and leads-on detection. Acquisition
// resumes after Initialize.
func (d *Dev) Shutdown() error {
	d.Halt()

	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateConfigured, StateAcquiring:
	default:
		return d.wrap(fmt.Errorf("%w: cannot shut down while %v", ErrInvalidState, d.state))
	}
	writes, err := d.opts.words()
	if err != nil {
		return d.wrap(err)
	}
	gen := writes[0].word
	gen = CnfgGenFields.EnECG.set(gen, false)
	gen = CnfgGenFields.EnULPLon.set(gen, false)
	if err := d.writeRegister(RegCnfgGen, gen); err != nil {
		return d.wrap(err)
	}
	d.state = StateShutdown
	return nil
}

// SetInterruptPin attaches the host pin wired to INTB. Streaming then
// waits for its falling edge instead of polling on a timer.
func (d *Dev) SetInterruptPin(p gpio.PinIn) error {
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return d.wrap(fmt.Errorf("could not configure %s: %w", p, err))
	}
	d.streamMu.Lock()
	defer d.streamMu.Unlock()
	d.intb = p
	return nil
}

// WaitForFIFO blocks until INTB asserts or timeout expires. It returns
// false on timeout or when no interrupt pin is attached.
func (d *Dev) WaitForFIFO(timeout time.Duration) bool {
	d.streamMu.Lock()
	p := d.intb
	d.streamMu.Unlock()
	if p == nil {
		return false
	}
	return p.WaitForEdge(timeout)
}

func (d *Dev) wrap(err error) error {
	return fmt.Errorf("%s: %w", strings.ToLower(d.name), err)
}

var _ conn.Resource = &Dev{}
