package vm

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// SSHKeyManager owns the host-side key pair injected into guests via the
// seed's authorized keys. One pair serves all VMs.
type SSHKeyManager struct {
	dataDir string
}

// NewSSHKeyManager creates a key manager storing keys in {dataDir}/ssh/.
func NewSSHKeyManager(dataDir string) *SSHKeyManager {
	return &SSHKeyManager{dataDir: dataDir}
}

func (m *SSHKeyManager) sshDir() string {
	return filepath.Join(m.dataDir, "ssh")
}

func (m *SSHKeyManager) privateKeyPath() string {
	return filepath.Join(m.sshDir(), "id_ed25519")
}

func (m *SSHKeyManager) publicKeyPath() string {
	return filepath.Join(m.sshDir(), "id_ed25519.pub")
}

// EnsureKeyPair generates an ed25519 key pair if it doesn't exist.
// Returns paths to the private and public key files.
func (m *SSHKeyManager) EnsureKeyPair() (privateKeyPath, publicKeyPath string, err error) {
	privPath := m.privateKeyPath()
	pubPath := m.publicKeyPath()

	if m.KeyPairExists() {
		return privPath, pubPath, nil
	}

	if err := os.MkdirAll(m.sshDir(), 0700); err != nil {
		return "", "", fmt.Errorf("create ssh directory: %w", err)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ed25519 key: %w", err)
	}

	if err := m.writePrivateKey(privPath, privKey); err != nil {
		return "", "", fmt.Errorf("write private key: %w", err)
	}
	if err := m.writePublicKey(pubPath, pubKey); err != nil {
		os.Remove(privPath)
		return "", "", fmt.Errorf("write public key: %w", err)
	}

	return privPath, pubPath, nil
}

// KeyPairExists returns true if both private and public keys exist.
func (m *SSHKeyManager) KeyPairExists() bool {
	_, privErr := os.Stat(m.privateKeyPath())
	_, pubErr := os.Stat(m.publicKeyPath())
	return privErr == nil && pubErr == nil
}

// PrivateKeyPath returns the path to the private key, or an error if no
// pair has been generated yet.
func (m *SSHKeyManager) PrivateKeyPath() (string, error) {
	path := m.privateKeyPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("SSH key pair not generated")
		}
		return "", err
	}
	return path, nil
}

// PublicKeyContent returns the public key line suitable for a guest's
// authorized keys, without the trailing newline.
func (m *SSHKeyManager) PublicKeyContent() (string, error) {
	content, err := os.ReadFile(m.publicKeyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("SSH key pair not generated")
		}
		return "", err
	}
	return strings.TrimRight(string(content), "\n"), nil
}

// writePrivateKey writes an ed25519 private key in OpenSSH format.
func (m *SSHKeyManager) writePrivateKey(path string, privKey ed25519.PrivateKey) error {
	pemBlock, err := ssh.MarshalPrivateKey(privKey, "vmctl key")
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	return os.WriteFile(path, pem.EncodeToMemory(pemBlock), 0600)
}

// writePublicKey writes an ed25519 public key in authorized_keys format.
func (m *SSHKeyManager) writePublicKey(path string, pubKey ed25519.PublicKey) error {
	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return fmt.Errorf("convert public key: %w", err)
	}

	authorizedKey := ssh.MarshalAuthorizedKey(sshPubKey)
	keyLine := fmt.Sprintf("%s vmctl\n", strings.TrimRight(string(authorizedKey), "\n"))
	return os.WriteFile(path, []byte(keyLine), 0644)
}
