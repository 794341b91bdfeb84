package vm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GehirnInc/crypt/sha512_crypt"
	"gopkg.in/yaml.v3"
)

func TestRenderUserData(t *testing.T) {
	record := testRecord(t, "web1")
	record.Hostname = "webhost"
	record.Username = "ubuntu"
	record.Secret = "changeme"

	out, err := RenderUserData(record)
	if err != nil {
		t.Fatalf("RenderUserData() error = %v", err)
	}

	if !strings.HasPrefix(out, "#cloud-config\n") {
		t.Fatalf("user data missing #cloud-config header:\n%s", out)
	}

	var doc seedUserData
	if err := yaml.Unmarshal([]byte(strings.TrimPrefix(out, "#cloud-config\n")), &doc); err != nil {
		t.Fatalf("user data is not valid YAML: %v", err)
	}

	if doc.Hostname != "webhost" {
		t.Errorf("hostname = %q, want webhost", doc.Hostname)
	}
	if !doc.SSHPasswordAuth {
		t.Error("ssh_pwauth = false, want true")
	}
	if len(doc.Users) != 1 {
		t.Fatalf("users = %d entries, want 1", len(doc.Users))
	}

	user := doc.Users[0]
	if user.Name != "ubuntu" {
		t.Errorf("user name = %q, want ubuntu", user.Name)
	}
	if user.Sudo != "ALL=(ALL) NOPASSWD:ALL" {
		t.Errorf("sudo = %q", user.Sudo)
	}
	if user.LockPasswd {
		t.Error("lock_passwd = true, want false")
	}

	// The account entry carries a salted SHA-512 hash, not the cleartext.
	if !strings.HasPrefix(user.Passwd, "$6$") {
		t.Errorf("passwd = %q, want a $6$ crypt hash", user.Passwd)
	}
	if err := sha512_crypt.New().Verify(user.Passwd, []byte("changeme")); err != nil {
		t.Errorf("passwd hash does not verify against the secret: %v", err)
	}

	// The chpasswd assignment carries the cleartext for root and the user.
	if want := "root:changeme\n"; !strings.Contains(doc.Chpasswd.List, want) {
		t.Errorf("chpasswd list %q missing %q", doc.Chpasswd.List, want)
	}
	if want := "ubuntu:changeme\n"; !strings.Contains(doc.Chpasswd.List, want) {
		t.Errorf("chpasswd list %q missing %q", doc.Chpasswd.List, want)
	}
	if doc.Chpasswd.Expire {
		t.Error("chpasswd expire = true, want false")
	}
}

func TestRenderUserDataAuthorizedKeys(t *testing.T) {
	record := testRecord(t, "web1")
	record.SSHAuthorizedKeys = []string{"ssh-ed25519 AAAAC3Nza vmctl"}

	out, err := RenderUserData(record)
	if err != nil {
		t.Fatalf("RenderUserData() error = %v", err)
	}

	var doc seedUserData
	if err := yaml.Unmarshal([]byte(strings.TrimPrefix(out, "#cloud-config\n")), &doc); err != nil {
		t.Fatal(err)
	}
	keys := doc.Users[0].SSHAuthorizedKeys
	if len(keys) != 1 || keys[0] != "ssh-ed25519 AAAAC3Nza vmctl" {
		t.Errorf("ssh_authorized_keys = %v", keys)
	}
}

func TestInstanceIDStable(t *testing.T) {
	a := InstanceID("web1")
	b := InstanceID("web1")
	if a != b {
		t.Errorf("InstanceID(web1) not stable: %q vs %q", a, b)
	}
	if a == InstanceID("web2") {
		t.Error("different names produced the same instance id")
	}
	if len(a) != 36 || strings.Count(a, "-") != 4 {
		t.Errorf("InstanceID(web1) = %q, want UUID form", a)
	}
}

func TestRenderMetaData(t *testing.T) {
	record := testRecord(t, "web1")
	record.Hostname = "webhost"

	got := RenderMetaData(record)
	want := "instance-id: " + InstanceID("web1") + "\nlocal-hostname: webhost\n"
	if got != want {
		t.Errorf("RenderMetaData() = %q, want %q", got, want)
	}
}

func TestBuildSeed(t *testing.T) {
	dir := t.TempDir()
	packager := &countingPackager{}
	builder := NewSeedBuilder(dir)
	builder.Packager = packager.packager()

	record := testRecord(t, "web1")
	record.SeedPath = filepath.Join(dir, "web1-seed.iso")

	path, err := builder.Build(record)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if path != record.SeedPath {
		t.Errorf("Build() = %q, want %q", path, record.SeedPath)
	}
	if _, err := os.Stat(record.SeedPath); err != nil {
		t.Fatalf("seed ISO missing: %v", err)
	}

	if !strings.HasPrefix(packager.lastUserData, "#cloud-config\n") {
		t.Error("staged user-data missing #cloud-config header")
	}
	if !strings.Contains(packager.lastMetaData, "instance-id: ") {
		t.Error("staged meta-data missing instance-id")
	}

	// Staging directories are removed after the build.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("staging directory %s left behind", e.Name())
		}
	}
}

func TestBuildSeedAlwaysRebuilds(t *testing.T) {
	dir := t.TempDir()
	packager := &countingPackager{}
	builder := NewSeedBuilder(dir)
	builder.Packager = packager.packager()

	record := testRecord(t, "web1")
	record.SeedPath = filepath.Join(dir, "web1-seed.iso")

	if _, err := builder.Build(record); err != nil {
		t.Fatal(err)
	}
	record.Hostname = "renamed"
	if _, err := builder.Build(record); err != nil {
		t.Fatal(err)
	}

	if got := packager.buildCount(); got != 2 {
		t.Errorf("builds = %d, want 2", got)
	}
	if !strings.Contains(packager.lastUserData, "renamed") {
		t.Error("second build did not pick up the new hostname")
	}
}

func TestBuildSeedPackagerFailure(t *testing.T) {
	dir := t.TempDir()
	packager := &countingPackager{fail: errors.New("no iso tool")}
	builder := NewSeedBuilder(dir)
	builder.Packager = packager.packager()

	record := testRecord(t, "web1")
	record.SeedPath = filepath.Join(dir, "web1-seed.iso")

	if _, err := builder.Build(record); err == nil {
		t.Fatal("Build() succeeded, want error")
	}
	if _, err := os.Stat(record.SeedPath); !os.IsNotExist(err) {
		t.Error("failed build left a seed ISO behind")
	}
	if _, err := os.Stat(record.SeedPath + ".partial"); !os.IsNotExist(err) {
		t.Error("failed build left a partial ISO behind")
	}
}

func TestBuildSeedRequiresPath(t *testing.T) {
	builder := NewSeedBuilder(t.TempDir())
	record := testRecord(t, "web1")
	record.SeedPath = ""

	if _, err := builder.Build(record); err == nil {
		t.Fatal("Build() succeeded without a seed path")
	}
}
