package sh

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/robotalks/crsfbridge/pkg/transport"
)

// Config defines the configurations for the shell.
type Config struct {
	Link    string
	Baud    int
	Timeout time.Duration
	Eval    bool
	JSON    bool
}

var defaultConfig = Config{
	Baud:    transport.DefaultBaud,
	Timeout: time.Second,
}

// SetupFlags sets command line flags.
func SetupFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&defaultConfig.Link, "link", "l", defaultConfig.Link, "Link to connect on start: device path or URL.")
	fs.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Link baud rate.")
	fs.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Reply timeout of device commands.")
	fs.BoolVarP(&defaultConfig.Eval, "eval", "e", defaultConfig.Eval, "Evaluation only, no interactive shell.")
	fs.BoolVar(&defaultConfig.JSON, "json", defaultConfig.JSON, "Print output in JSON.")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Config  *Config
	Shell   *ishell.Shell
	Session *Session
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var commands = []*ishell.Cmd{
	&ConnectCmd,
	&DisconnectCmd,
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{Config: conf, Shell: ishell.New()}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requiring a session.
func MustBeConnected(fn func(c *ishell.Context, s *Session)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		sess := ShellFrom(c).Session
		if sess == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c, sess)
	}
}

// CommandContext creates a context with the reply timeout.
func CommandContext(c *ishell.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ShellFrom(c).Config.Timeout)
}

// Output prints v as JSON in JSON mode, or text otherwise.
func Output(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).Config.JSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Connect opens link and replaces the current session.
func (s *Shell) Connect(link string) error {
	rw, err := transport.Open(link, s.Config.Baud)
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Session = NewSession(link, rw)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", link))
	return nil
}

// Disconnect closes the current session.
func (s *Shell) Disconnect() {
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			glog.V(2).Infof("close %s: %v", s.Session.Name, err)
		}
		s.Session = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) error {
	defer s.Disconnect()
	if s.Config.Link != "" {
		if err := s.Connect(s.Config.Link); err != nil {
			return fmt.Errorf("connect %s: %w", s.Config.Link, err)
		}
	}
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if s.Config.Eval {
		return fmt.Errorf("command expected")
	}
	s.Shell.Run()
	return nil
}

var (
	// ConnectCmd connects a link.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "LINK",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			link := s.Config.Link
			if len(c.Args) > 0 {
				link = c.Args[0]
			}
			if link == "" {
				c.Err(fmt.Errorf("link required"))
				return
			}
			if err := s.Connect(link); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes the current link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)
