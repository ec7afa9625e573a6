package max30003

import (
	"fmt"
)

// readRegister reads one 24-bit register. The transfer is 4 bytes: the
// command byte followed by the payload, MSB first.
func (d *Dev) readRegister(addr Reg) (uint32, error) {
	r, err := entry(addr)
	if err != nil {
		return 0, err
	}
	if !r.Readable() {
		return 0, fmt.Errorf("%w: %v", ErrWriteOnlyRegister, r)
	}

	var write, read [1 + wordBytes]byte
	write[0] = uint8(addr)<<1 | cmdRead
	if err := d.c.Tx(write[:], read[:]); err != nil {
		return 0, fmt.Errorf("%w: reading %v: %w", ErrTransport, r, err)
	}
	return uint32(read[1])<<16 | uint32(read[2])<<8 | uint32(read[3]), nil
}

// writeRegister writes one 24-bit register.
func (d *Dev) writeRegister(addr Reg, word uint32) error {
	r, err := entry(addr)
	if err != nil {
		return err
	}
	if !r.Writable() {
		return fmt.Errorf("%w: %v", ErrReadOnlyRegister, r)
	}
	if word > wordMask {
		return fmt.Errorf("%w: 0x%X is wider than 24 bits", ErrInvalidFieldValue, word)
	}

	write := [1 + wordBytes]byte{
		uint8(addr)<<1 | cmdWrite,
		byte(word >> 16),
		byte(word >> 8),
		byte(word),
	}
	if err := d.c.Tx(write[:], nil); err != nil {
		return fmt.Errorf("%w: writing %v: %w", ErrTransport, r, err)
	}
	return nil
}

// burstRead clocks count words out of a burst register in one transfer.
// The chip advances its FIFO read pointer after every word, so the
// address is sent once.
func (d *Dev) burstRead(addr Reg, count int) ([]byte, error) {
	r, err := entry(addr)
	if err != nil {
		return nil, err
	}
	if !r.Readable() {
		return nil, fmt.Errorf("%w: %v", ErrWriteOnlyRegister, r)
	}

	write := make([]byte, 1+count*wordBytes)
	read := make([]byte, len(write))
	write[0] = uint8(addr)<<1 | cmdRead
	if err := d.c.Tx(write, read); err != nil {
		return nil, fmt.Errorf("%w: burst reading %d words from %v: %w", ErrTransport, count, r, err)
	}
	return read[1:], nil
}

// ReadRegister reads the raw word of a register.
func (d *Dev) ReadRegister(addr Reg) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.readRegister(addr)
	if err != nil {
		return 0, d.wrap(err)
	}
	return w, nil
}

// WriteRegister writes a raw word to a register. It bypasses the device
// state: writing configuration registers this way is not reflected by
// Opts.
func (d *Dev) WriteRegister(addr Reg, word uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeRegister(addr, word); err != nil {
		return d.wrap(err)
	}
	return nil
}
