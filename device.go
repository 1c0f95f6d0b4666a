package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"frontdesk/audio"
)

// pickMicrophone resolves the capture device for the call. A non-empty name
// is matched against the enumerated devices (case-insensitive substring);
// otherwise a single device is used as-is and multiple devices open an
// interactive picker.
func pickMicrophone(ctx audio.Context, name string) (*audio.DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	if name != "" {
		lower := strings.ToLower(name)
		for i := range devices {
			if strings.Contains(strings.ToLower(devices[i].Name), lower) {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("no capture device matching %q", name)
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}
	return promptDevice(devices)
}

// promptDevice runs a raw-mode arrow-key picker on stdin. Bluetooth headsets
// are flagged because their added latency is audible on a live call.
func promptDevice(devices []audio.DeviceInfo) (*audio.DeviceInfo, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Microphone for incoming calls (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			tag := ""
			if audio.IsBluetooth(d.Name) {
				tag = " \x1b[33m[⚠ adds call latency]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
			} else {
				fmt.Printf("    %s%s\r\n", d.Name, tag)
			}
		}
	}

	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Print("\r\n")
				term.Restore(fd, oldState)
				return &devices[cursor], nil
			case 3: // Ctrl+C
				fmt.Print("\r\n")
				term.Restore(fd, oldState)
				os.Exit(130)
			case 'j':
				if cursor < len(devices)-1 {
					cursor++
				}
			case 'k':
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A':
				if cursor > 0 {
					cursor--
				}
			case 'B':
				if cursor < len(devices)-1 {
					cursor++
				}
			}
		}

		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}
