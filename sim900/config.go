package sim900

import (
	"log/slog"
	"time"
)

// Config holds the engine settings. Build one with NewConfigBuilder; the
// zero value lacks a Dialer and will not validate.
type Config struct {
	// Dialer opens the transport to the modem. Required.
	Dialer Dialer
	// Power drives the modem's power button. Required only when
	// EstablishContact may need to power-cycle the device.
	Power PowerLine
	// Logger receives engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// PatienceFloor is the minimum patience any transmit runs with. A
	// SIM900 cannot turn a command around faster than this; smaller
	// requests are silently raised.
	PatienceFloor time.Duration
	// ProbePatience is the window for the contact-establishment probe.
	ProbePatience time.Duration
	// ContactAttempts is the power-cycle retry ceiling for
	// EstablishContact.
	ContactAttempts int

	// Power toggle timings: button press length, off dwell before the
	// line is raised again, and the boot settle wait before re-probing.
	PowerPressHold time.Duration
	PowerOffHold   time.Duration
	PowerBootWait  time.Duration
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.PatienceFloor == 0 {
		c.PatienceFloor = 250 * time.Millisecond
	}
	if c.ProbePatience == 0 {
		c.ProbePatience = time.Second
	}
	if c.ContactAttempts == 0 {
		c.ContactAttempts = 5
	}
	if c.PowerPressHold == 0 {
		c.PowerPressHold = 100 * time.Millisecond
	}
	if c.PowerOffHold == 0 {
		c.PowerOffHold = 1200 * time.Millisecond
	}
	if c.PowerBootWait == 0 {
		c.PowerBootWait = 5 * time.Second
	}
}

// ConfigBuilder assembles a Config fluently.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder preloaded with nothing; unset fields
// take their defaults at Build time.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithPowerLine(p PowerLine) *ConfigBuilder {
	b.config.Power = p
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithPatienceFloor(d time.Duration) *ConfigBuilder {
	b.config.PatienceFloor = d
	return b
}

func (b *ConfigBuilder) WithProbePatience(d time.Duration) *ConfigBuilder {
	b.config.ProbePatience = d
	return b
}

func (b *ConfigBuilder) WithContactAttempts(n int) *ConfigBuilder {
	b.config.ContactAttempts = n
	return b
}

// WithPowerTimings sets the three delays of the power toggle sequence:
// press hold, off dwell, and boot settle.
func (b *ConfigBuilder) WithPowerTimings(press, off, boot time.Duration) *ConfigBuilder {
	b.config.PowerPressHold = press
	b.config.PowerOffHold = off
	b.config.PowerBootWait = boot
	return b
}

// Build validates the assembled config and applies defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	b.config.setDefaults()
	return b.config, nil
}
