package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHOpts configures authentication for ssh:// and scp-style remotes.
type SSHOpts struct {
	// KeyFile overrides the default key search (~/.ssh/id_ed25519, id_ecdsa,
	// id_rsa).
	KeyFile string
	// KnownHosts overrides ~/.ssh/known_hosts. An explicit file that cannot
	// be loaded is an error.
	KnownHosts string
	// Insecure skips host key verification.
	Insecure bool
}

// usesSSH reports whether cloning loc goes over SSH.
func (l Location) usesSSH() bool {
	if !l.IsRemote() {
		return false
	}
	scheme, _, ok := strings.Cut(l.URL, "://")
	if !ok {
		// scp-like user@host:path
		return true
	}
	scheme = strings.ToLower(scheme)
	return scheme == "ssh" || scheme == "git+ssh"
}

// sshAuth builds go-git auth for loc. Signers come from the SSH agent (if
// SSH_AUTH_SOCK is set) followed by key files. The returned func releases
// the agent connection.
func sshAuth(loc Location, opts SSHOpts) (*gitssh.PublicKeysCallback, func(), error) {
	user := loc.User
	if user == "" {
		user = "git"
	}

	hostKeys, err := hostKeyCallback(opts)
	if err != nil {
		return nil, nil, err
	}

	var (
		agentClient agent.ExtendedAgent
		closeAgent  = func() {}
	)
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentClient = agent.NewClient(conn)
			closeAgent = func() { _ = conn.Close() }
		}
	}

	keySigners := keyFileSigners(opts)
	if agentClient == nil && len(keySigners) == 0 {
		return nil, nil, fmt.Errorf("%w: no SSH auth available for %s (set SSH_AUTH_SOCK or provide a key)",
			ErrCloneFailed, loc.Host)
	}

	auth := &gitssh.PublicKeysCallback{
		User: user,
		Callback: func() ([]ssh.Signer, error) {
			var signers []ssh.Signer
			if agentClient != nil {
				if s, err := agentClient.Signers(); err == nil {
					signers = append(signers, s...)
				}
			}
			return append(signers, keySigners...), nil
		},
		HostKeyCallbackHelper: gitssh.HostKeyCallbackHelper{HostKeyCallback: hostKeys},
	}
	return auth, closeAgent, nil
}

func keyFileSigners(opts SSHOpts) []ssh.Signer {
	if opts.KeyFile != "" {
		if s := keyFileSigner(opts.KeyFile); s != nil {
			return []ssh.Signer{s}
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		if s := keyFileSigner(filepath.Join(home, ".ssh", name)); s != nil {
			signers = append(signers, s)
		}
	}
	return signers
}

// keyFileSigner loads an unencrypted private key, or returns nil.
func keyFileSigner(path string) ssh.Signer {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil
	}
	return signer
}

func hostKeyCallback(opts SSHOpts) (ssh.HostKeyCallback, error) {
	if opts.Insecure {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly requested with --ssh-insecure
	}
	if opts.KnownHosts != "" {
		cb, err := knownhosts.New(opts.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		return cb, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // fallback for systems without known_hosts
	}
	cb, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		// Most CLI tools accept the host on first connection.
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // fallback for systems without known_hosts
	}
	return cb, nil
}
