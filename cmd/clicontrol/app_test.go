package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	serial "github.com/luhtfiimanal/arduino-clicontrol"
)

type fakeChannel struct {
	mu     sync.Mutex
	writes []string
	closed bool
}

func (f *fakeChannel) Listen(serial.Handlers) error { return nil }

func (f *fakeChannel) WriteLine(line, newline string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, line+newline)
	return nil
}

func (f *fakeChannel) BaudRate() int { return serial.DefaultBaudRate }

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func ports(p ...serial.PortDescriptor) serial.Lister {
	return serial.ListerFunc(func() ([]serial.PortDescriptor, error) { return p, nil })
}

func newApp(l serial.Lister, in io.Reader, out io.Writer) (*app, *fakeChannel, *[]serial.Config) {
	ch := &fakeChannel{}
	var opened []serial.Config
	return &app{
		lister: l,
		open: func(cfg serial.Config) (channel, error) {
			opened = append(opened, cfg)
			return ch, nil
		},
		in:  in,
		out: out,
		log: zerolog.Nop(),
	}, ch, &opened
}

func TestApp_SelectsArduinoAndRelays(t *testing.T) {
	var out bytes.Buffer
	l := ports(
		serial.PortDescriptor{Name: "/dev/ttyUSB0", Manufacturer: "FTDI"},
		serial.PortDescriptor{Name: "/dev/ttyACM0", Manufacturer: "Arduino LLC"},
	)
	a, ch, opened := newApp(l, strings.NewReader("hello\nquit\n"), &out)

	require.NoError(t, a.run(context.Background()))

	require.Len(t, *opened, 1)
	require.Equal(t, "/dev/ttyACM0", (*opened)[0].Device)
	require.Equal(t, 115200, (*opened)[0].BaudRate)
	require.Equal(t, "\n", (*opened)[0].Delimiter)

	require.Equal(t, "Arduino is: /dev/ttyACM0\n"+
		"port open. Data rate: 115200\n"+
		"writing: hello\n", out.String())
	require.Equal(t, []string{"hello"}, ch.writes)
	require.True(t, ch.closed)
}

func TestApp_NotFound(t *testing.T) {
	var out bytes.Buffer
	a, _, opened := newApp(ports(serial.PortDescriptor{Name: "/dev/ttyS0"}), strings.NewReader(""), &out)

	err := a.run(context.Background())
	require.ErrorIs(t, err, serial.ErrNotFound)
	require.Empty(t, *opened)
	require.Empty(t, out.String())
}

func TestApp_ScanError(t *testing.T) {
	l := serial.ListerFunc(func() ([]serial.PortDescriptor, error) { return nil, errors.New("no sysfs") })
	a, _, _ := newApp(l, strings.NewReader(""), io.Discard)

	var scanErr *serial.ScanError
	require.ErrorAs(t, a.run(context.Background()), &scanErr)
}

func TestApp_OpenError(t *testing.T) {
	var out bytes.Buffer
	a, _, _ := newApp(ports(serial.PortDescriptor{Name: "/dev/ttyACM0", Manufacturer: "Arduino"}), strings.NewReader(""), &out)
	cause := errors.New("permission denied")
	a.open = func(serial.Config) (channel, error) { return nil, cause }

	require.ErrorIs(t, a.run(context.Background()), cause)
	require.Equal(t, "Arduino is: /dev/ttyACM0\n", out.String())
}

func TestApp_CancelIsCleanExit(t *testing.T) {
	inR, inW := io.Pipe()
	t.Cleanup(func() { inW.Close() })
	a, ch, _ := newApp(ports(serial.PortDescriptor{Name: "/dev/ttyACM0", Manufacturer: "Arduino"}), inR, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for run to return")
	}
	require.True(t, ch.closed)
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"/dev/ttyACM0"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.Error(t, cmd.Execute())
}
