package main

import (
	"fmt"
	"os"
	"strconv"
)

// sysfsPin drives a GPIO line through the kernel's sysfs interface. No
// GPIO library is pulled in for a single output pin toggled a handful of
// times per boot.
type sysfsPin struct {
	valuePath string
}

// openPowerPin exports GPIO pin n (if not already exported), configures it
// as an output, and returns it as a power line.
func openPowerPin(n int) (*sysfsPin, error) {
	gpio := fmt.Sprintf("/sys/class/gpio/gpio%d", n)

	if _, err := os.Stat(gpio); os.IsNotExist(err) {
		if err := os.WriteFile("/sys/class/gpio/export", []byte(strconv.Itoa(n)), 0o644); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", n, err)
		}
	}
	if err := os.WriteFile(gpio+"/direction", []byte("out"), 0o644); err != nil {
		return nil, fmt.Errorf("configure gpio %d: %w", n, err)
	}

	return &sysfsPin{valuePath: gpio + "/value"}, nil
}

// Set implements sim900.PowerLine.
func (p *sysfsPin) Set(high bool) error {
	v := "0"
	if high {
		v = "1"
	}
	return os.WriteFile(p.valuePath, []byte(v), 0o644)
}
