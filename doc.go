// Package serial finds an Arduino-class board on a Linux host and talks to it
// over a raw, line-framed serial connection.
//
// Features:
//   - Port discovery through sysfs, matching the USB manufacturer string
//   - Raw syscall-based serial I/O on Linux (8N1, default 115200 baud)
//   - Newline framing that is independent of how bytes arrive
//   - Serialized writes, event handlers for data, error and close
//   - Self-pipe mechanism for killability
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	port, err := serial.Scan(serial.NewSysfsLister(), serial.ArduinoManufacturer, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ch, err := serial.Open(serial.Config{Device: port.Name})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	err = ch.Listen(serial.Handlers{
//	    OnData:  func(line string) { fmt.Println("Arduino:", line) },
//	    OnError: func(err error) { log.Println("Serial port error:", err) },
//	    OnClose: func() { log.Println("port closed.") },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Send a command
//	if err := ch.WriteLine("M8", ""); err != nil {
//	    log.Println("Write failed:", err)
//	}
package serial
