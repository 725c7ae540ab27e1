package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	DefaultBaudRate  = 115200
	DefaultDelimiter = "\n"
)

var (
	ErrNotOpen          = errors.New("serial: channel not open")
	ErrChannelClosed    = errors.New("serial: channel closed")
	ErrAlreadyListening = errors.New("serial: listeners already attached")
)

// State is the lifecycle state of a Channel.
type State int32

const (
	StateUnopened State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device    string
	BaudRate  int    // default 115200
	Delimiter string // default "\n"
	Logger    *zerolog.Logger
}

// Handlers receive the events of a listening Channel. Nil handlers are skipped.
// All handlers are called from the single read goroutine.
type Handlers struct {
	OnData  func(line string)
	OnError func(err error)
	OnClose func()
}

// Channel is a line-framed connection to a Linux serial device.
// Writes are serialized; reads are delivered through Handlers.
type Channel struct {
	cfg    Config
	logger zerolog.Logger

	fd    int
	file  *os.File
	pipeR int // self-pipe read fd
	pipeW int // self-pipe write fd

	state     atomic.Int32
	listening atomic.Bool
	writeMu   sync.Mutex

	done       chan struct{}
	closeOnce  sync.Once
	notifyOnce sync.Once
	handlers   Handlers
}

// New returns an unopened Channel for cfg.
func New(cfg Config) *Channel {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Channel{
		cfg:    cfg,
		logger: logger.With().Str("device", cfg.Device).Logger(),
		fd:     -1,
		pipeR:  -1,
		pipeW:  -1,
		done:   make(chan struct{}),
	}
}

// Open opens a serial port using the provided Config and returns an open Channel.
func Open(cfg Config) (*Channel, error) {
	c := New(cfg)
	if err := c.Open(); err != nil {
		return nil, err
	}
	return c, nil
}

// Open configures the device for raw 8N1 operation at the configured baud rate.
func (c *Channel) Open() error {
	switch c.State() {
	case StateOpen:
		return nil
	case StateClosed:
		return ErrChannelClosed
	}

	fd, err := syscall.Open(c.cfg.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.cfg.Device, err)
	}

	if err := configureRaw(fd, c.cfg.BaudRate); err != nil {
		syscall.Close(fd)
		return err
	}

	// Blocking from here on; poll decides when to read.
	if err := syscall.SetNonblock(fd, false); err != nil {
		syscall.Close(fd)
		return fmt.Errorf("set blocking: %w", err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		syscall.Close(fd)
		return fmt.Errorf("pipe: %w", err)
	}

	c.fd = fd
	c.file = os.NewFile(uintptr(fd), c.cfg.Device)
	c.pipeR = pipeFds[0]
	c.pipeW = pipeFds[1]
	c.state.Store(int32(StateOpen))

	c.logger.Info().Int("baud_rate", c.cfg.BaudRate).Msg("port open")
	return nil
}

func configureRaw(fd, baudRate int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baudToUnix(baudRate)

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// State reports the current lifecycle state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Device returns the configured device path.
func (c *Channel) Device() string {
	return c.cfg.Device
}

// BaudRate returns the configured baud rate.
func (c *Channel) BaudRate() int {
	return c.cfg.BaudRate
}

// WriteLine writes line followed by newline to the serial port.
// It is safe for concurrent use; writes never interleave.
func (c *Channel) WriteLine(line string, newline string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	switch c.State() {
	case StateUnopened:
		return ErrNotOpen
	case StateClosed:
		return ErrChannelClosed
	}

	n, err := c.file.WriteString(line + newline)
	if err != nil {
		if errors.Is(err, os.ErrClosed) {
			return ErrChannelClosed
		}
		return fmt.Errorf("serial write: %w", err)
	}
	c.logger.Debug().Str("line", line).Int("bytes", n).Msg("write")
	return nil
}

// Listen attaches h and starts delivering events on a new goroutine.
// It may be called once per Channel.
func (c *Channel) Listen(h Handlers) error {
	if err := c.attach(h); err != nil {
		return err
	}
	go c.readLoop()
	return nil
}

// ReadLinesLoop attaches h and reads lines until the channel is closed or a
// read fails. It blocks; use Listen to run it in the background.
func (c *Channel) ReadLinesLoop(h Handlers) error {
	if err := c.attach(h); err != nil {
		return err
	}
	c.readLoop()
	return nil
}

func (c *Channel) attach(h Handlers) error {
	switch c.State() {
	case StateUnopened:
		return ErrNotOpen
	case StateClosed:
		return ErrChannelClosed
	}
	if !c.listening.CompareAndSwap(false, true) {
		return ErrAlreadyListening
	}
	c.handlers = h
	return nil
}

func (c *Channel) readLoop() {
	defer unix.Close(c.pipeR)

	framer := NewLineFramer(c.cfg.Delimiter)
	buf := make([]byte, 4096)
	emit := func(line string) {
		if c.handlers.OnData != nil {
			c.handlers.OnData(line)
		}
	}

	for {
		pfd := []unix.PollFd{
			{Fd: int32(c.fd), Events: unix.POLLIN},
			{Fd: int32(c.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}

		select {
		case <-c.done:
			c.notifyClose()
			return
		default:
		}

		if err != nil {
			c.fail(fmt.Errorf("serial poll: %w", err))
			return
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			c.notifyClose()
			return
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			continue
		}

		n, err := c.file.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n], emit)
		}
		if err != nil {
			if isHangup(err) {
				c.logger.Info().Err(err).Msg("device disconnected")
				c.Close()
				c.notifyClose()
				return
			}
			c.fail(fmt.Errorf("serial read: %w", err))
			return
		}
	}
}

func (c *Channel) fail(err error) {
	c.logger.Error().Err(err).Msg("serial port error")
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

func (c *Channel) notifyClose() {
	c.notifyOnce.Do(func() {
		c.logger.Info().Msg("port closed")
		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
	})
}

func isHangup(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.ENXIO) ||
		errors.Is(err, os.ErrClosed)
}

// Close closes the serial port and unblocks any running read loop.
// Safe to call multiple times; subsequent calls are no-ops.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(StateClosed)))
		close(c.done)
		if prev != StateOpen {
			return
		}

		// Wake up poll using self-pipe
		unix.Write(c.pipeW, []byte{1})

		err = c.file.Close()

		unix.Close(c.pipeW)
		if !c.listening.Load() {
			unix.Close(c.pipeR)
		}
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	default:
		return unix.B115200 // fallback
	}
}
