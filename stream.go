package max30003

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Batch is the outcome of one FIFO drain during streaming.
type Batch struct {
	Time     time.Time
	Samples  []Sample
	Terminal Terminal
	Err      error
}

// StreamContinuous drains the FIFO on a continuous basis and sends every
// non-empty batch on the returned channel. With an interrupt pin attached
// the FIFO is drained when INTB asserts, and at least every interval
// otherwise. A zero interval defaults to half the time the FIFO takes to
// reach its almost-full threshold.
//
// The stream ends, closing the channel, after a batch carrying an error
// or, without Opts.Rollover, an overflow. The application must call Halt()
// to stop streaming when done.
//
// It's the responsibility of the caller to retrieve the batches from the
// channel as fast as possible, otherwise the FIFO overflows.
func (d *Dev) StreamContinuous(interval time.Duration) (<-chan Batch, error) {
	d.mu.Lock()
	state := d.state
	fill := d.fillTime()
	d.mu.Unlock()
	if state != StateAcquiring {
		return nil, d.wrap(fmt.Errorf("%w: cannot stream while %v", ErrInvalidState, state))
	}
	if interval <= 0 {
		interval = fill / 2
	}

	d.streamMu.Lock()
	defer d.streamMu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
		d.wg.Wait()
	}

	batches := make(chan Batch)
	stop := make(chan struct{})
	d.stop = stop
	d.wg.Add(1)
	go func(pin gpio.PinIn) {
		defer d.wg.Done()
		defer close(batches)
		d.streamContinuous(interval, pin, batches, stop)
	}(d.intb)
	return batches, nil
}

// Halt stops streaming as initiated by StreamContinuous(). The chip keeps
// acquiring; use Shutdown to power it down.
func (d *Dev) Halt() error {
	d.streamMu.Lock()
	defer d.streamMu.Unlock()
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	d.wg.Wait()
	return nil
}

// fillTime is the time the FIFO takes to reach the almost-full threshold.
func (d *Dev) fillTime() time.Duration {
	sps := d.opts.SampleRate()
	if sps <= 0 || d.opts.AlmostFull <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(float64(d.opts.AlmostFull) / sps * float64(time.Second))
}

func (d *Dev) streamContinuous(interval time.Duration, pin gpio.PinIn, batches chan<- Batch, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		// Drain once right away.
		d.mu.Lock()
		samples, term, err := d.drain(fifoDepth)
		rollover := d.opts.Rollover
		d.mu.Unlock()

		if len(samples) > 0 || term == TerminalOverflow || err != nil {
			b := Batch{
				Time:     time.Now(),
				Samples:  samples,
				Terminal: term,
				Err:      err,
			}
			select {
			case batches <- b:
			case <-stop:
				return
			}
		}
		if err != nil || (term == TerminalOverflow && !rollover) {
			return
		}

		if pin != nil {
			pin.WaitForEdge(interval)
			select {
			case <-stop:
				return
			default:
			}
			continue
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}
