// Package relay forwards lines between a terminal and a serial channel.
//
// Device lines are printed as "Arduino: <line>". Terminal lines are trimmed
// and written to the device, except the line "quit", which ends Run.
// Both directions are handled on the goroutine that calls Run, so writes to
// the channel happen one at a time and each source keeps its own order.
package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	serial "github.com/luhtfiimanal/arduino-clicontrol"
)

// QuitCommand is the terminal line that stops the relay.
const QuitCommand = "quit"

// Channel is the part of a serial channel the relay drives.
type Channel interface {
	Listen(h serial.Handlers) error
	WriteLine(line, newline string) error
}

// Options configure a Relay. Zero values mean stdin, stdout, no terminator
// and no logging.
type Options struct {
	Input      io.Reader
	Output     io.Writer
	Terminator string // appended to every line written to the device
	Logger     *zerolog.Logger
}

type Relay struct {
	ch         Channel
	in         io.Reader
	out        io.Writer
	terminator string
	log        zerolog.Logger
}

func New(ch Channel, opts Options) *Relay {
	r := &Relay{
		ch:         ch,
		in:         opts.Input,
		out:        opts.Output,
		terminator: opts.Terminator,
		log:        zerolog.Nop(),
	}
	if r.in == nil {
		r.in = os.Stdin
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if opts.Logger != nil {
		r.log = *opts.Logger
	}
	return r
}

type eventKind int

const (
	eventData eventKind = iota
	eventError
	eventClose
)

type event struct {
	kind eventKind
	line string
	err  error
}

// IsQuit reports whether a terminal line is the quit command.
func IsQuit(line string) bool {
	return strings.TrimSpace(line) == QuitCommand
}

// Run attaches to the channel, then relays until the quit command (nil) or
// until ctx is done (ctx.Err()). End of terminal input only stops the
// terminal-to-device direction.
func (r *Relay) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)

	events := make(chan event, 64)
	send := func(ev event) {
		select {
		case events <- ev:
		case <-stop:
		}
	}

	// Listeners must be attached before any terminal input is read.
	err := r.ch.Listen(serial.Handlers{
		OnData:  func(line string) { send(event{kind: eventData, line: line}) },
		OnError: func(err error) { send(event{kind: eventError, err: err}) },
		OnClose: func() { send(event{kind: eventClose}) },
	})
	if err != nil {
		return fmt.Errorf("attach listeners: %w", err)
	}

	input := make(chan string)
	go r.readInput(input, stop)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			r.handleEvent(ev)

		case line, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			if IsQuit(line) {
				r.log.Debug().Msg("quit")
				return nil
			}
			r.forward(strings.TrimSpace(line))
		}
	}
}

func (r *Relay) readInput(input chan<- string, stop <-chan struct{}) {
	defer close(input)

	br := bufio.NewReader(r.in)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			select {
			case input <- line:
			case <-stop:
				return
			}
		}
		if err == io.EOF {
			r.log.Debug().Msg("terminal input closed")
			return
		}
		if err != nil {
			r.log.Error().Err(err).Msg("terminal input")
			return
		}
	}
}

func (r *Relay) handleEvent(ev event) {
	switch ev.kind {
	case eventData:
		r.println("Arduino: " + ev.line)
	case eventError:
		r.println("Serial port error: " + ev.err.Error())
	case eventClose:
		r.println("port closed.")
	}
}

func (r *Relay) forward(line string) {
	err := r.ch.WriteLine(line, r.terminator)
	r.println("writing: " + line)
	if err != nil {
		r.log.Warn().Err(err).Str("line", line).Msg("write failed")
		r.println("Serial port error: " + err.Error())
	}
}

func (r *Relay) println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}
