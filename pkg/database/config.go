package database

import (
	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"net/url"
	"strconv"
	"strings"
)

// Config defines database client configuration.
type Config struct {
	Type       string  `yaml:"type" default:"mysql"`
	Host       string  `yaml:"host"`
	Port       int     `yaml:"port"`
	Database   string  `yaml:"database"`
	User       string  `yaml:"user"`
	Password   string  `yaml:"password"`
	TlsOptions TLS     `yaml:",inline"`
	Options    Options `yaml:"options"`
}

// Validate checks constraints in the supplied database configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	switch c.Type {
	case MySQL, PostgreSQL:
		if c.Host == "" {
			return errors.New("database host missing")
		}

		if c.User == "" {
			return errors.New("database user missing")
		}
	case SQLite:
	default:
		return unknownDbType(c.Type)
	}

	if c.Database == "" {
		return errors.New("database name missing")
	}

	return c.Options.Validate()
}

// ParseURL parses a connection URL into a Config.
// The URL scheme selects the database type:
// mysql://, postgres:// (postgresql://, pgsql://) or sqlite:// (sqlite3://, file://).
// A plain file path without a scheme is treated as an SQLite database file.
func ParseURL(rawUrl string) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "can't set config defaults")
	}

	if !strings.Contains(rawUrl, "://") {
		c.Type = SQLite
		c.Database = rawUrl

		return c, c.Validate()
	}

	u, err := url.Parse(rawUrl)
	if err != nil {
		return nil, errors.Wrap(err, "can't parse connection URL")
	}

	switch u.Scheme {
	case "mysql", "mariadb":
		c.Type = MySQL
	case "postgres", "postgresql", "pgsql":
		c.Type = PostgreSQL
	case "sqlite", "sqlite3", "file":
		c.Type = SQLite
		c.Database = u.Host + u.Path
		if u.Opaque != "" {
			c.Database = u.Opaque
		}

		return c, c.Validate()
	default:
		return nil, unknownDbType(u.Scheme)
	}

	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, errors.Wrapf(err, "can't parse port %q", port)
		}

		c.Port = p
	}

	c.Database = strings.TrimPrefix(u.Path, "/")

	if u.User != nil {
		c.User = u.User.Username()
		c.Password, _ = u.User.Password()
	}

	query := u.Query()
	switch query.Get("sslmode") {
	case "", "disable":
	case "require", "prefer", "allow":
		c.TlsOptions.Enable = true
		c.TlsOptions.Insecure = true
	default: // verify-ca, verify-full
		c.TlsOptions.Enable = true
	}

	if v := query.Get("sslcert"); v != "" {
		c.TlsOptions.Cert = v
	}
	if v := query.Get("sslkey"); v != "" {
		c.TlsOptions.Key = v
	}
	if v := query.Get("sslrootcert"); v != "" {
		c.TlsOptions.Ca = v
	}

	return c, c.Validate()
}

func unknownDbType(t string) error {
	return errors.Errorf(`unknown database type %q, must be one of: "mysql", "pgsql", "sqlite"`, t)
}
