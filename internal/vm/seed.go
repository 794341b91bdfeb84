package vm

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/GehirnInc/crypt/sha512_crypt"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ISOPackager turns a staging directory into an ISO9660 volume at isoPath.
type ISOPackager func(srcDir, isoPath string) error

// SeedBuilder synthesizes the first-boot configuration media for a VM:
// a cloud-config user document and an instance-identity document packaged
// into one "cidata" ISO the guest reads on first start.
//
// Seeds are treated as cheap and always-fresh: every build replaces the
// previous ISO, and the owning workflow rebuilds after any change to the
// hostname, username, or secret.
type SeedBuilder struct {
	// Dir is where seed ISOs are written.
	Dir string

	// Packager overrides ISO packaging. If nil, PackageISO is used.
	Packager ISOPackager

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewSeedBuilder creates a seed builder writing into dir.
func NewSeedBuilder(dir string) *SeedBuilder {
	return &SeedBuilder{Dir: dir}
}

func (b *SeedBuilder) packager() ISOPackager {
	if b.Packager != nil {
		return b.Packager
	}
	return PackageISO
}

func (b *SeedBuilder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// seedUser is the login account entry of the cloud-config document.
type seedUser struct {
	Name              string   `yaml:"name"`
	Sudo              string   `yaml:"sudo"`
	Shell             string   `yaml:"shell"`
	LockPasswd        bool     `yaml:"lock_passwd"`
	Passwd            string   `yaml:"passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`
}

type seedChpasswd struct {
	Expire bool   `yaml:"expire"`
	List   string `yaml:"list"`
}

type seedUserData struct {
	Hostname        string       `yaml:"hostname"`
	ManageEtcHosts  bool         `yaml:"manage_etc_hosts"`
	SSHPasswordAuth bool         `yaml:"ssh_pwauth"`
	DisableRoot     bool         `yaml:"disable_root"`
	Users           []seedUser   `yaml:"users"`
	Chpasswd        seedChpasswd `yaml:"chpasswd"`
}

// RenderUserData produces the #cloud-config document for a record. The
// account entry carries a salted SHA-512 hash of the secret; the chpasswd
// assignment for root and the named account carries it in cleartext, as
// the provisioning format expects.
func RenderUserData(record *VMRecord) (string, error) {
	hash, err := sha512_crypt.New().Generate([]byte(record.Secret), nil)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}

	doc := seedUserData{
		Hostname:        record.Hostname,
		ManageEtcHosts:  true,
		SSHPasswordAuth: true,
		DisableRoot:     false,
		Users: []seedUser{{
			Name:              record.Username,
			Sudo:              "ALL=(ALL) NOPASSWD:ALL",
			Shell:             "/bin/bash",
			LockPasswd:        false,
			Passwd:            hash,
			SSHAuthorizedKeys: record.SSHAuthorizedKeys,
		}},
		Chpasswd: seedChpasswd{
			Expire: false,
			List:   fmt.Sprintf("root:%s\n%s:%s\n", record.Secret, record.Username, record.Secret),
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render cloud-config: %w", err)
	}
	return fmt.Sprintf("#cloud-config\n%s", data), nil
}

// InstanceID derives the stable instance identity for a VM name. The same
// name always yields the same id, so a rebuilt seed does not make the
// guest re-run first-boot setup.
func InstanceID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte("vmctl-"+name)).String()
}

// RenderMetaData produces the instance-identity document for a record.
func RenderMetaData(record *VMRecord) string {
	return fmt.Sprintf("instance-id: %s\nlocal-hostname: %s\n", InstanceID(record.Name), record.Hostname)
}

// Build renders both documents and packages them into the record's seed
// ISO, replacing any previous one. Any failure is fatal to the enclosing
// provisioning workflow; a failed build leaves no partial ISO behind.
func (b *SeedBuilder) Build(record *VMRecord) (string, error) {
	if record.SeedPath == "" {
		return "", fmt.Errorf("record %s has no seed path", record.Name)
	}

	userData, err := RenderUserData(record)
	if err != nil {
		return "", err
	}
	metaData := RenderMetaData(record)

	if err := os.MkdirAll(b.Dir, 0755); err != nil {
		return "", fmt.Errorf("create seeds dir: %w", err)
	}

	staging, err := os.MkdirTemp(b.Dir, record.Name+"-seed-*")
	if err != nil {
		return "", fmt.Errorf("create seed staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := os.WriteFile(filepath.Join(staging, "user-data"), []byte(userData), 0600); err != nil {
		return "", fmt.Errorf("write user-data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, "meta-data"), []byte(metaData), 0644); err != nil {
		return "", fmt.Errorf("write meta-data: %w", err)
	}

	tmpISO := record.SeedPath + ".partial"
	if err := b.packager()(staging, tmpISO); err != nil {
		os.Remove(tmpISO)
		return "", fmt.Errorf("package seed: %w", err)
	}
	if err := os.Rename(tmpISO, record.SeedPath); err != nil {
		return "", fmt.Errorf("place seed: %w", err)
	}

	b.logger().Info("seed rebuilt", "vm", record.Name, "path", record.SeedPath)
	return record.SeedPath, nil
}

// PackageISO builds an ISO9660 volume labeled "cidata" from srcDir using
// the first tool found: genisoimage, mkisofs, or xorriso.
func PackageISO(srcDir, isoPath string) error {
	if path, err := exec.LookPath("genisoimage"); err == nil {
		return runPackager(path, "-output", isoPath, "-volid", "cidata", "-joliet", "-rock", srcDir)
	}
	if path, err := exec.LookPath("mkisofs"); err == nil {
		return runPackager(path, "-output", isoPath, "-volid", "cidata", "-joliet", "-rock", srcDir)
	}
	if path, err := exec.LookPath("xorriso"); err == nil {
		return runPackager(path, "-as", "mkisofs", "-o", isoPath, "-V", "cidata", "-J", "-R", srcDir)
	}
	return fmt.Errorf("cannot build seed ISO: install genisoimage, mkisofs, or xorriso")
}

func runPackager(bin string, args ...string) error {
	if output, err := exec.Command(bin, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, strings.TrimSpace(string(output)))
	}
	return nil
}
