package bridge

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/crsfbridge/pkg/transport"
)

// Config defines the configurations for the bridge daemon.
type Config struct {
	HostLink       string        `yaml:"hostLink"`
	HostBaud       int           `yaml:"hostBaud"`
	ModuleLink     string        `yaml:"moduleLink"`
	ModuleBaud     int           `yaml:"moduleBaud"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	StatusInterval time.Duration `yaml:"statusInterval"`
	Failsafe       time.Duration `yaml:"failsafe"`

	HTTPAddr     string        `yaml:"http"`
	MQTTURL      string        `yaml:"mqtt"`
	MQTTInterval time.Duration `yaml:"mqttInterval"`
	Capture      string        `yaml:"capture"`
	Announce     string        `yaml:"announce"`
}

var defaultConfig = Config{
	HostLink:       "/dev/ttyACM0",
	HostBaud:       transport.DefaultBaud,
	ModuleLink:     "/dev/ttyUSB0",
	ModuleBaud:     transport.DefaultBaud,
	PollInterval:   50 * time.Microsecond,
	StatusInterval: DefaultStatusInterval,
	Failsafe:       FailsafeTimeout * time.Microsecond,
	HTTPAddr:       ":8420",
	MQTTInterval:   time.Second,
}

// SetupFlags sets command line flags.
func SetupFlags(fs *pflag.FlagSet) {
	fs.StringVar(&defaultConfig.HostLink, "host", defaultConfig.HostLink, "Host link: device path or URL (serial://, term://, tcp://, ws://).")
	fs.IntVar(&defaultConfig.HostBaud, "host-baud", defaultConfig.HostBaud, "Host link baud rate.")
	fs.StringVarP(&defaultConfig.ModuleLink, "module", "m", defaultConfig.ModuleLink, "Module link: device path or URL.")
	fs.IntVar(&defaultConfig.ModuleBaud, "module-baud", defaultConfig.ModuleBaud, "Module link baud rate.")
	fs.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Pause between scheduler ticks.")
	fs.DurationVar(&defaultConfig.StatusInterval, "status-interval", defaultConfig.StatusInterval, "Status snapshot refresh interval.")
	fs.DurationVar(&defaultConfig.Failsafe, "failsafe", defaultConfig.Failsafe, "Stop sending channels after no host update for this long.")
	fs.StringVar(&defaultConfig.HTTPAddr, "http", defaultConfig.HTTPAddr, "HTTP status listen address, empty to disable.")
	fs.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL for telemetry, e.g. tcp://broker:1883/crsf/.")
	fs.DurationVar(&defaultConfig.MQTTInterval, "mqtt-interval", defaultConfig.MQTTInterval, "MQTT status publish interval.")
	fs.StringVar(&defaultConfig.Capture, "capture", defaultConfig.Capture, "Frame capture file name pattern (strftime), empty to disable.")
	fs.StringVar(&defaultConfig.Announce, "announce", defaultConfig.Announce, "DNS-SD instance name for the HTTP service, empty to disable.")
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

// Load overrides fields from a YAML file.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// NewBridge opens both links and creates the Bridge.
func (c *Config) NewBridge() (*Bridge, error) {
	host, err := transport.Open(c.HostLink, c.HostBaud)
	if err != nil {
		return nil, fmt.Errorf("open host link %s: %w", c.HostLink, err)
	}
	port, err := transport.Open(c.ModuleLink, c.ModuleBaud)
	if err != nil {
		host.Close()
		return nil, fmt.Errorf("open module link %s: %w", c.ModuleLink, err)
	}
	b := New(host, transport.NewHalfDuplex(port, c.ModuleBaud))
	if c.StatusInterval > 0 {
		b.StatusInterval = c.StatusInterval
	}
	if c.Failsafe > 0 {
		b.SetFailsafeTimeout(c.Failsafe)
	}
	return b, nil
}
