package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	serial "github.com/luhtfiimanal/arduino-clicontrol"
	"github.com/luhtfiimanal/arduino-clicontrol/internal/logger"
	"github.com/luhtfiimanal/arduino-clicontrol/relay"
)

type channel interface {
	relay.Channel
	BaudRate() int
	Close() error
}

type app struct {
	lister serial.Lister
	open   func(cfg serial.Config) (channel, error)
	in     io.Reader
	out    io.Writer
	log    zerolog.Logger
}

// run scans, opens the first Arduino port and relays until quit or ctx ends.
func (a *app) run(ctx context.Context) error {
	scanLog := logger.WithComponent(a.log, "scanner")
	port, err := serial.Scan(a.lister, serial.ArduinoManufacturer, &scanLog)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, "Arduino is: "+port.Name)

	chLog := logger.WithComponent(a.log, "serial")
	ch, err := a.open(serial.Config{
		Device:    port.Name,
		BaudRate:  serial.DefaultBaudRate,
		Delimiter: serial.DefaultDelimiter,
		Logger:    &chLog,
	})
	if err != nil {
		return err
	}
	defer ch.Close()
	_, _ = fmt.Fprintf(a.out, "port open. Data rate: %d\n", ch.BaudRate())

	relayLog := logger.WithComponent(a.log, "relay")
	err = relay.New(ch, relay.Options{
		Input:  a.in,
		Output: a.out,
		Logger: &relayLog,
	}).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
