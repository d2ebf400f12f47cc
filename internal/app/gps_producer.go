package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/simulator"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

// ErrLinkClosed is reported when the device stops sending without a read
// error (EOF).
var ErrLinkClosed = errors.New("serial link closed")

// simulatorInterval is the epoch rate of the simulated receiver.
const simulatorInterval = time.Second

// openPort opens the GPS serial port at baud, 8N1, or the simulated
// receiver when port is simulator.PortName. Replaced in tests.
var openPort = func(port string, baud int) (io.ReadWriteCloser, error) {
	if port == simulator.PortName {
		return simulator.Open(simulator.NewMockSource(simulator.DefaultCircle, time.Now), simulatorInterval), nil
	}
	serialOpts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	return serial.Open(serialOpts)
}

// SerialOptions configure the GPS reader.
type SerialOptions struct {
	Port           string
	BaudRate       int
	ReconnectDelay time.Duration // <=0 means do not reconnect
}

// RunGPSProducer owns the serial link: it opens the port, feeds every line
// into the tracker and reconnects after ReconnectDelay when the link fails.
// It returns when ctx is cancelled, or after the first failure when
// reconnecting is disabled.
func RunGPSProducer(ctx context.Context, opts SerialOptions, t *tracker.Tracker, logger *zap.SugaredLogger) error {
	for {
		err := runSerialOnce(ctx, opts, t, logger)
		if ctx.Err() != nil {
			return nil
		}
		if opts.ReconnectDelay <= 0 {
			return err
		}
		logger.Infow("gps: reconnecting", "port", opts.Port, "delay", opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.ReconnectDelay):
		}
	}
}

func runSerialOnce(ctx context.Context, opts SerialOptions, t *tracker.Tracker, logger *zap.SugaredLogger) error {
	port, err := openPort(opts.Port, opts.BaudRate)
	if err != nil {
		err = fmt.Errorf("open %s: %w", opts.Port, err)
		t.LinkFailed(opts.Port, opts.BaudRate, err)
		return err
	}
	logger.Infow("gps: serial port opened", "port", opts.Port, "baud", opts.BaudRate)
	t.Connect(opts.Port, opts.BaudRate)

	// Closing the port is the only way to unblock a pending read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()

	err = FeedLines(ctx, port, t)
	port.Close()
	if ctx.Err() != nil {
		t.Disconnect(nil)
		return nil
	}
	if err == nil {
		err = ErrLinkClosed
	}
	err = fmt.Errorf("read %s: %w", opts.Port, err)
	t.Disconnect(err)
	return err
}

// FeedLines reads newline-terminated sentences from r and hands each to
// the tracker until EOF (nil), a read error, or ctx is cancelled.
func FeedLines(ctx context.Context, r io.Reader, t *tracker.Tracker) error {
	reader := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			t.HandleLine(line)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
