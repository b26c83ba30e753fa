package fetch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bgentry/go-netrc/netrc"
)

// Credential is a login and password for one host.
type Credential struct {
	Login    string
	Password string
}

// Netrc holds credentials keyed by host, read from a .netrc file.
type Netrc struct {
	file *netrc.Netrc
}

// LoadNetrc reads a netrc file. An empty path means $HOME/.netrc.
func LoadNetrc(path string) (*Netrc, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		path = filepath.Join(home, ".netrc")
	}

	f, err := netrc.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read netrc %s: %w", path, err)
	}
	return &Netrc{file: f}, nil
}

// ParseNetrc parses netrc content.
func ParseNetrc(r io.Reader) (*Netrc, error) {
	f, err := netrc.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse netrc: %w", err)
	}
	return &Netrc{file: f}, nil
}

// Lookup returns the credentials for host, falling back to the default entry.
func (n *Netrc) Lookup(host string) (Credential, bool) {
	if n == nil || n.file == nil {
		return Credential{}, false
	}
	m := n.file.FindMachine(host)
	if m == nil {
		return Credential{}, false
	}
	return Credential{Login: m.Login, Password: m.Password}, true
}
