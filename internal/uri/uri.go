// Package uri parses virshle connection URIs (unix://, tcp://, ssh://) into
// a tagged variant, mirroring the three transports the connection layer
// supports. See virshle_core/src/connection/uri.rs in the original
// implementation this was distilled from.
package uri

import (
	"fmt"
	"net/url"
	"os/user"
	"strconv"

	"github.com/virshle/virshle/internal/virrors"
)

// Kind tags which transport a Uri describes.
type Kind int

const (
	Local Kind = iota
	Tcp
	Ssh
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "unix"
	case Tcp:
		return "tcp"
	case Ssh:
		return "ssh"
	default:
		return "unknown"
	}
}

// DefaultSshPort is used when a ssh:// URI omits an explicit port.
const DefaultSshPort = 22

// Uri is the tagged variant. Only the fields matching Kind are meaningful.
type Uri struct {
	Kind Kind

	// Local
	Path string

	// Tcp
	Host string
	Port int

	// Ssh
	User string
	// Host, Port, Path shared with Tcp/Local above.
}

func (u Uri) String() string {
	switch u.Kind {
	case Local:
		return "unix://" + u.Path
	case Tcp:
		return fmt.Sprintf("tcp://%s:%d", u.Host, u.Port)
	case Ssh:
		return fmt.Sprintf("ssh://%s@%s:%d%s", u.User, u.Host, u.Port, u.Path)
	default:
		return "<invalid-uri>"
	}
}

// Parse parses a connection string into a tagged Uri. defaultSocketPath is
// used to fill in an ssh:// URI's path when the URI carries none (mirrors
// SshUri::default() falling back to the daemon's default unix socket).
func Parse(raw string, defaultSocketPath string) (Uri, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Uri{}, virrors.Wrap(err, "invalid connection uri", "check the uri syntax")
	}

	switch u.Scheme {
	case "unix":
		path := u.Path
		if path == "" {
			path = defaultSocketPath
		}
		return Uri{Kind: Local, Path: path}, nil

	case "tcp":
		host := u.Hostname()
		if host == "" {
			host = "localhost"
		}
		port := 0
		if u.Port() != "" {
			port, err = strconv.Atoi(u.Port())
			if err != nil {
				return Uri{}, virrors.Wrap(err, "invalid tcp port", "use a numeric port")
			}
		}
		return Uri{Kind: Tcp, Host: host, Port: port}, nil

	case "ssh":
		username := u.User.Username()
		if username == "" {
			if cur, err := user.Current(); err == nil {
				username = cur.Username
			}
		}
		host := u.Hostname()
		if host == "" {
			host = "localhost"
		}
		port := DefaultSshPort
		if u.Port() != "" {
			port, err = strconv.Atoi(u.Port())
			if err != nil {
				return Uri{}, virrors.Wrap(err, "invalid ssh port", "use a numeric port")
			}
		}
		path := u.Path
		if path == "" {
			path = defaultSocketPath
		}
		return Uri{Kind: Ssh, User: username, Host: host, Port: port, Path: path}, nil

	default:
		return Uri{}, virrors.New("Couldn't determine the uri scheme", "Try ssh://, tcp:// or unix://")
	}
}
