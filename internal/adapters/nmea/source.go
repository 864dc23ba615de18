package nmea

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/Christopher96/places-online/internal/adapters/feed"
	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
)

// minCourseKnots is the ground speed below which RMC course is noise.
const minCourseKnots = 0.5

// Opener opens the NMEA byte stream.
type Opener func() (io.ReadCloser, error)

// SerialPort opens a GPS receiver on a serial line.
func SerialPort(name string, baud uint) Opener {
	return func() (io.ReadCloser, error) {
		port, err := serial.Open(serial.OpenOptions{
			PortName:              name,
			BaudRate:              baud,
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		})
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrPermissionDenied, name, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrLocationUnavailable, name, err)
		}
		log.Printf("GPS serial port opened on %s at %d baud", name, baud)
		return port, nil
	}
}

// Source implements ports.LocationProvider from NMEA 0183 sentences.
// Positions come from valid RMC sentences; headings from HDT, falling
// back to RMC course over ground while moving.
type Source struct {
	*feed.Hub
	open Opener
	now  func() time.Time

	sawHDT atomic.Bool

	mu     sync.Mutex // guards cancel and port
	cancel context.CancelFunc
	port   io.Closer
}

// New creates a source that opens its stream on first use.
func New(open Opener, fixTimeout time.Duration) *Source {
	return &Source{
		Hub:  feed.NewHub("nmea", fixTimeout),
		open: open,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// start opens the stream unless it is already being read. A failed open
// is not remembered, so the next fix request tries the device again.
func (s *Source) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}

	r, err := s.open()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.port = r
	go func() {
		if err := s.Read(ctx, r); err != nil {
			log.Printf("GPS read error: %v", err)
		}
		s.release(r)
	}()
	return nil
}

// release drops r if it is still the open stream, so a device that went
// away is reopened on the next request.
func (s *Source) release(r io.Closer) {
	s.mu.Lock()
	if s.port != r {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.port, s.cancel = nil, nil
	s.mu.Unlock()

	cancel()
	_ = r.Close()
}

// RequestFix opens the receiver if needed and waits for a valid fix.
func (s *Source) RequestFix(ctx context.Context) (domain.GeoPoint, error) {
	if err := s.start(); err != nil {
		return domain.GeoPoint{}, err
	}
	return s.Hub.RequestFix(ctx)
}

// Subscribe opens the receiver if needed and registers handlers.
func (s *Source) Subscribe(ctx context.Context, onPosition ports.PositionHandler, onHeading ports.HeadingHandler) (ports.Subscription, error) {
	if err := s.start(); err != nil {
		return nil, err
	}
	return s.Hub.Subscribe(ctx, onPosition, onHeading)
}

// Read consumes sentences from r until EOF or ctx is cancelled.
func (s *Source) Read(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		s.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Source) handleLine(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy receivers emit partial sentences
		return
	}

	now := s.now()
	switch m := sentence.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return
		}
		s.Deliver(domain.PositionSample{
			Point: domain.GeoPoint{Lat: m.Latitude, Lon: m.Longitude},
			Time:  now,
		})
		if !s.sawHDT.Load() && m.Speed >= minCourseKnots {
			s.DeliverHeading(domain.HeadingSample{Degrees: m.Course, Time: now})
		}
	case nmea.HDT:
		s.sawHDT.Store(true)
		s.DeliverHeading(domain.HeadingSample{Degrees: m.Heading, Time: now})
	}
}

// Close stops reading and releases the port.
func (s *Source) Close() {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port != nil {
		// Closing the port unblocks a pending read.
		s.release(port)
	}
}
