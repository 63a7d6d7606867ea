package feeder

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/robotalks/crsfbridge/pkg/transport"
)

// Config defines the configurations for the feeder.
type Config struct {
	Link     string
	Baud     int
	Mapping  string
	Joystick int
	Interval time.Duration
}

var defaultConfig = Config{
	Link:     "/dev/ttyACM0",
	Baud:     transport.DefaultBaud,
	Joystick: -1,
	Interval: DefaultInterval,
}

// SetupFlags sets command line flags.
func SetupFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&defaultConfig.Link, "link", "l", defaultConfig.Link, "Bridge host link: device path or URL.")
	fs.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Link baud rate.")
	fs.StringVar(&defaultConfig.Mapping, "mapping", defaultConfig.Mapping, "Channel mapping YAML file, all channels unmapped if empty.")
	fs.IntVar(&defaultConfig.Joystick, "joystick", defaultConfig.Joystick, "Joystick index, -1 for auto detection.")
	fs.DurationVar(&defaultConfig.Interval, "interval", defaultConfig.Interval, "Channel frame interval.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewFeeder loads the mapping, opens the link and creates the Feeder.
func (c *Config) NewFeeder() (*Feeder, io.Closer, error) {
	mapping := DefaultMapping()
	if c.Mapping != "" {
		var err error
		if mapping, err = LoadMapping(c.Mapping); err != nil {
			return nil, nil, err
		}
	}
	link, err := transport.Open(c.Link, c.Baud)
	if err != nil {
		return nil, nil, fmt.Errorf("open link %s: %w", c.Link, err)
	}
	f := New(link, mapping)
	if c.Interval > 0 {
		f.Interval = c.Interval
	}
	if c.Joystick >= 0 {
		path := JoystickPath(c.Joystick)
		f.OpenJoystick = func() (Joystick, error) { return OpenJoystick(path) }
	}
	return f, link, nil
}
