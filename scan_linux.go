package serial

import (
	"os"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
)

const (
	defaultSysfsRoot = "/sys"
	defaultByIDDir   = "/dev/serial/by-id"
)

// SysfsLister lists serial ports and fills in the USB manufacturer and the
// /dev/serial/by-id name, which the enumerator does not report.
type SysfsLister struct {
	SysfsRoot string // default /sys
	ByIDDir   string // default /dev/serial/by-id

	enumerate func() ([]*enumerator.PortDetails, error)
}

// NewSysfsLister returns a lister rooted at the host's /sys and /dev.
func NewSysfsLister() *SysfsLister {
	return &SysfsLister{
		SysfsRoot: defaultSysfsRoot,
		ByIDDir:   defaultByIDDir,
		enumerate: enumerator.GetDetailedPortsList,
	}
}

func (l *SysfsLister) ListPorts() ([]PortDescriptor, error) {
	enumerate := l.enumerate
	if enumerate == nil {
		enumerate = enumerator.GetDetailedPortsList
	}

	details, err := enumerate()
	if err != nil {
		return nil, err
	}

	byID := l.byIDLinks()
	ports := make([]PortDescriptor, 0, len(details))
	for _, d := range details {
		p := PortDescriptor{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			PnPID:        byID[d.Name],
		}
		if d.IsUSB {
			p.Manufacturer = l.manufacturer(d.Name)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// manufacturer walks up from the tty's device node until it reaches the USB
// device directory carrying the manufacturer string.
func (l *SysfsLister) manufacturer(device string) string {
	root := l.sysfsRoot()
	dir, err := filepath.EvalSymlinks(filepath.Join(root, "class", "tty", filepath.Base(device), "device"))
	if err != nil {
		return ""
	}

	stop := filepath.Join(root, "devices")
	for dir != stop && dir != root && dir != "/" && dir != "." {
		if b, err := os.ReadFile(filepath.Join(dir, "manufacturer")); err == nil {
			return strings.TrimSpace(string(b))
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

// byIDLinks maps resolved device paths to their by-id link names.
func (l *SysfsLister) byIDLinks() map[string]string {
	dir := l.ByIDDir
	if dir == "" {
		dir = defaultByIDDir
	}

	links := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return links
	}
	for _, e := range entries {
		target, err := filepath.EvalSymlinks(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if _, ok := links[target]; !ok {
			links[target] = e.Name()
		}
	}
	return links
}

func (l *SysfsLister) sysfsRoot() string {
	if l.SysfsRoot == "" {
		return defaultSysfsRoot
	}
	return l.SysfsRoot
}
