package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/mikesmitty/max30003"
	"github.com/mikesmitty/max30003/internal/metrics"
	"github.com/mikesmitty/max30003/internal/store"
)

type config struct {
	bus      string
	intb     string
	preset   string
	gain     int
	interval time.Duration
	rtor     time.Duration
	db       string
	session  string
	http     string
	shell    bool
	verbose  bool
}

func main() {
	log.SetPrefix("max30003: ")
	log.SetFlags(0)

	var cfg config
	flag.StringVar(&cfg.bus, "bus", "", "Name of the SPI bus")
	flag.StringVar(&cfg.intb, "intb", "", "Name of the GPIO wired to INTB (default: poll on a timer)")
	flag.StringVar(&cfg.preset, "preset", "hrm", "Configuration preset (hrm or diag)")
	flag.IntVar(&cfg.gain, "gain", 0, "ECG gain in V/V (20, 40, 80 or 160, default: preset)")
	flag.DurationVar(&cfg.interval, "interval", 0, "FIFO polling interval (default: half the FIFO fill time)")
	flag.DurationVar(&cfg.rtor, "rtor", 100*time.Millisecond, "R-to-R polling interval, shorter than a beat")
	flag.StringVar(&cfg.db, "db", "", "Path of a sqlite database recording the samples")
	flag.StringVar(&cfg.session, "session", "", "Recording session name (default: start time)")
	flag.StringVar(&cfg.http, "http", "", "Address serving Prometheus metrics, e.g. :9100")
	flag.BoolVar(&cfg.shell, "shell", false, "Start an interactive register shell")
	flag.BoolVar(&cfg.verbose, "v", false, "Log every batch")
	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func options(cfg config) (*max30003.Opts, error) {
	var opts *max30003.Opts
	switch strings.ToLower(cfg.preset) {
	case "hrm", "":
		opts = max30003.HeartRateMonitor()
	case "diag":
		opts = max30003.Diagnostic()
	default:
		return nil, fmt.Errorf("invalid preset %q", cfg.preset)
	}
	switch cfg.gain {
	case 0:
	case 20:
		opts.Gain = max30003.Gain20
	case 40:
		opts.Gain = max30003.Gain40
	case 80:
		opts.Gain = max30003.Gain80
	case 160:
		opts.Gain = max30003.Gain160
	default:
		return nil, fmt.Errorf("invalid gain %d", cfg.gain)
	}
	return opts, nil
}

func run(cfg config) (err error) {
	opts, err := options(cfg)
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("could not initialize host: %w", err)
	}

	port, err := spireg.Open(cfg.bus)
	if err != nil {
		return fmt.Errorf("could not open SPI bus %q: %w", cfg.bus, err)
	}
	defer func() { err = multierr.Append(err, port.Close()) }()

	dev, err := max30003.New(port, opts)
	if err != nil {
		return err
	}

	if cfg.intb != "" {
		pin := gpioreg.ByName(cfg.intb)
		if pin == nil {
			return fmt.Errorf("could not find GPIO %q", cfg.intb)
		}
		if err := dev.SetInterruptPin(pin); err != nil {
			return err
		}
	}

	if cfg.shell {
		return runShell(dev)
	}
	return record(cfg, dev)
}

func record(cfg config, dev *max30003.Dev) (err error) {
	var db *store.Store
	if cfg.db != "" {
		db, err = store.Open(cfg.db, cfg.session)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, db.Close()) }()
	}
	m := metrics.New()

	if err := dev.Initialize(); err != nil {
		return err
	}
	if err := dev.Configure(nil); err != nil {
		return err
	}
	info, err := dev.Info()
	if err != nil {
		return err
	}
	if err := dev.Synchronize(); err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dev.Shutdown()) }()

	o := dev.Opts()
	log.Printf("%s: chip revision %d, %s", dev, info.Revision, humanize.SI(o.SampleRate(), "sps"))

	batches, err := dev.StreamContinuous(cfg.interval)
	if err != nil {
		return err
	}
	defer dev.Halt()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	grp, ctx := errgroup.WithContext(ctx)

	var sum summary
	sum.start = time.Now()

	grp.Go(func() error {
		defer stop()
		for b := range batches {
			m.ObserveBatch(b)
			sum.add(b)
			if cfg.verbose {
				log.Printf("batch: %d samples, %v", len(b.Samples), b.Terminal)
			}
			if db != nil {
				if err := db.WriteBatch(b); err != nil {
					return err
				}
			}
			if b.Err != nil {
				return b.Err
			}
			if b.Terminal == max30003.TerminalOverflow && !o.Rollover {
				return fmt.Errorf("FIFO overflow after %s samples", humanize.Comma(sum.samples))
			}
		}
		return nil
	})

	grp.Go(func() error {
		<-ctx.Done()
		return dev.Halt()
	})

	if o.RtoR && cfg.rtor > 0 {
		grp.Go(func() error {
			tick := time.NewTicker(cfg.rtor)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case now := <-tick.C:
					r, ok, err := dev.NextRtoR()
					if err != nil {
						return err
					}
					if !ok || r.Interval <= 0 {
						continue
					}
					m.ObserveRtoR(r)
					sum.beats++
					if cfg.verbose {
						log.Printf("heart rate: %.1f bpm", r.BPM())
					}
					if db != nil {
						if err := db.WriteRtoR(r, now); err != nil {
							return err
						}
					}
				}
			}
		})
	}

	if cfg.http != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.http, Handler: mux}
		grp.Go(func() error {
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		grp.Go(func() error {
			<-ctx.Done()
			shut, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(shut)
		})
	}

	err = grp.Wait()
	log.Print(sum.String())
	return err
}

type summary struct {
	start     time.Time
	samples   int64
	batches   int64
	overflows int64
	beats     int64
}

func (s *summary) add(b max30003.Batch) {
	s.batches++
	s.samples += int64(len(b.Samples))
	if b.Terminal == max30003.TerminalOverflow {
		s.overflows++
	}
}

func (s *summary) String() string {
	return fmt.Sprintf(
		"recorded %s samples in %s batches since %s, %s overflows, %s R-to-R intervals",
		humanize.Comma(s.samples),
		humanize.Comma(s.batches),
		humanize.Time(s.start),
		humanize.Comma(s.overflows),
		humanize.Comma(s.beats),
	)
}
