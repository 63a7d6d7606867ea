//go:build linux

package feeder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	jsIOCGAXES    uint = 0x80016a11
	jsIOCGBUTTONS uint = 0x80016a12
	jsIOCGNAME    uint = 0x80ff6a13

	jsEventButton uint8 = 0x01
	jsEventAxis   uint8 = 0x02
	jsEventInit   uint8 = 0x80

	jsEventSize = 8
)

type linuxJoystick struct {
	file    *os.File
	name    string
	axes    uint8
	buttons uint8
	buf     [jsEventSize]byte
}

// JoystickPath returns the device path of joystick index.
func JoystickPath(index int) string {
	return fmt.Sprintf("/dev/input/js%d", index)
}

// OpenJoystick opens the joystick device at path.
func OpenJoystick(path string) (Joystick, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	js := &linuxJoystick{file: f}
	var name [256]byte
	errno := js.ioctl(jsIOCGAXES, unsafe.Pointer(&js.axes))
	if errno == 0 {
		errno = js.ioctl(jsIOCGBUTTONS, unsafe.Pointer(&js.buttons))
	}
	if errno == 0 {
		errno = js.ioctl(jsIOCGNAME, unsafe.Pointer(&name))
	}
	if errno != 0 {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, errno)
	}
	if end := bytes.IndexByte(name[:], 0); end >= 0 {
		js.name = string(name[:end])
	} else {
		js.name = string(name[:])
	}
	return js, nil
}

// DetectJoystick opens the first available joystick. It returns nil
// without error when none is present.
func DetectJoystick() (Joystick, error) {
	for index := 0; index < 32; index++ {
		js, err := OpenJoystick(JoystickPath(index))
		if os.IsNotExist(err) {
			continue
		}
		return js, err
	}
	return nil, nil
}

func (j *linuxJoystick) Close() error     { return j.file.Close() }
func (j *linuxJoystick) Name() string     { return j.name }
func (j *linuxJoystick) AxisCount() int   { return int(j.axes) }
func (j *linuxJoystick) ButtonCount() int { return int(j.buttons) }

// ReadEvent reads a struct js_event: u32 time, s16 value, u8 type, u8 number.
func (j *linuxJoystick) ReadEvent() (Event, error) {
	for {
		if _, err := io.ReadFull(j.file, j.buf[:]); err != nil {
			return Event{}, err
		}
		value := int16(binary.LittleEndian.Uint16(j.buf[4:]))
		typ, number := j.buf[6], int(j.buf[7])
		ev := Event{Init: typ&jsEventInit != 0, Number: number, Value: int(value)}
		switch typ &^ jsEventInit {
		case jsEventButton:
			ev.Button = true
			return ev, nil
		case jsEventAxis:
			return ev, nil
		}
	}
}

func (j *linuxJoystick) ioctl(req uint, ptr unsafe.Pointer) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, j.file.Fd(), uintptr(req), uintptr(ptr))
	return errno
}
