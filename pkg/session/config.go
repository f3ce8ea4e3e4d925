package session

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// DefaultTimeout is the session timeout in milliseconds used when none is given.
const DefaultTimeout = 20000

var (
	ErrNoConnectString    = errors.New("connect string is required")
	ErrNegativeTimeout    = errors.New("timeout must not be negative")
	ErrIncompleteIdentity = errors.New("client id and password must either be both specified or unspecified")
)

// Config describes the session to open.
type Config struct {
	// Connect is a comma separated list of host:port pairs.
	Connect string `yaml:"connect"`
	// Timeout is the requested session timeout in milliseconds.
	Timeout                int32  `yaml:"timeout"`
	DebugLevel             string `yaml:"debug_level"`
	HostOrderDeterministic bool   `yaml:"host_order_deterministic"`
	// ClientID and ClientPassword resume an existing session. The id is in hex and
	// the password is 32 hex characters.
	ClientID       *string `yaml:"client_id,omitempty"`
	ClientPassword *string `yaml:"client_password,omitempty"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, nil
}

// WithDefaults fills in the fields that were left out.
func (c Config) WithDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c Config) Validate() error {
	if c.Connect == "" {
		return ErrNoConnectString
	}
	if c.Timeout < 0 {
		return ErrNegativeTimeout
	}
	if _, err := zookeeper.ParseLogLevel(c.DebugLevel); err != nil {
		return errors.Wrap(err, "invalid debug_level")
	}
	if (c.ClientID == nil) != (c.ClientPassword == nil) {
		return ErrIncompleteIdentity
	}
	if c.ClientID != nil {
		if _, err := zookeeper.ParseClientID(*c.ClientID, *c.ClientPassword); err != nil {
			return errors.Wrap(err, "invalid client identity")
		}
	}
	return nil
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c Config) clientID() zookeeper.ClientID {
	if c.ClientID == nil {
		return zookeeper.ClientID{}
	}
	// Validate has already checked the identity.
	id, _ := zookeeper.ParseClientID(*c.ClientID, *c.ClientPassword)
	return id
}
