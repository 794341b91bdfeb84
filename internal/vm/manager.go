package vm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/crypto/ssh"

	"github.com/progamer242688/vm/internal/catalog"
	"github.com/progamer242688/vm/internal/timing"
	"github.com/progamer242688/vm/pkg/hypervisor"
)

// Defaults are the configured fallbacks applied when a create request
// leaves a field unset.
type Defaults struct {
	Image    string
	DiskSize string
	MemoryMB int
	CPUs     int
	SSHPort  int
}

func (d Defaults) withFallbacks(cat *catalog.Catalog) Defaults {
	if d.Image == "" {
		d.Image = cat.Default().Label
	}
	if d.DiskSize == "" {
		d.DiskSize = "20G"
	}
	if d.MemoryMB <= 0 {
		d.MemoryMB = 2048
	}
	if d.CPUs <= 0 {
		d.CPUs = 2
	}
	if d.SSHPort <= 0 {
		d.SSHPort = 2222
	}
	return d
}

// CreateSpec carries the operator's answers for a new VM. Unset fields
// fall back to the catalog entry and the configured defaults.
type CreateSpec struct {
	Name     string
	Image    string // catalog label
	Hostname string
	Username string
	Secret   string
	DiskSize string
	MemoryMB int
	CPUs     int
	SSHPort  int
	GUI      bool

	// ExtraForwards are "host:guest" rules in the order supplied.
	ExtraForwards []string

	// SSHAuthorizedKeys are public keys injected at first boot.
	SSHAuthorizedKeys []string
}

// FieldChanges is a partial update to an existing record. Nil fields are
// left unchanged. The name, image source, and disk size cannot be edited;
// disk size changes go through ResizeVM.
type FieldChanges struct {
	Hostname          *string
	Username          *string
	Secret            *string
	MemoryMB          *int
	CPUs              *int
	SSHPort           *int
	GUI               *bool
	ExtraForwards     *[]string
	SSHAuthorizedKeys *[]string
}

// CreateResult is the outcome of CreateVM.
type CreateResult struct {
	Record *VMRecord

	// Warnings are non-fatal provisioning findings, e.g. a failed resize.
	Warnings []string
}

// StartResult is the outcome of StartVM.
type StartResult struct {
	Record *VMRecord
	PID    int

	// Ready reports whether the management port accepted a connection
	// within the probe window. The VM keeps booting either way.
	Ready bool

	// Warnings are non-fatal findings: failed resize, dropped forwarding
	// rules.
	Warnings []string
}

// ManagerConfig wires a Manager together.
type ManagerConfig struct {
	// VMsDir holds one record file per VM.
	VMsDir string

	// ImagesDir holds the per-VM disk images.
	ImagesDir string

	// SeedsDir holds the per-VM seed ISOs.
	SeedsDir string

	// RunDir holds the per-VM PID files.
	RunDir string

	// Driver launches and signals hypervisor processes. Required.
	Driver hypervisor.Driver

	// Catalog is the selectable image table. If nil, the built-in one.
	Catalog *catalog.Catalog

	// Defaults fill unset create-request fields.
	Defaults Defaults

	// Grace is how long a stop waits before forcing termination.
	Grace time.Duration

	// Probe bounds the readiness probe after start.
	Probe ProbeConfig

	// Logger receives structured operation logs. If nil, slog.Default().
	Logger *slog.Logger
}

// Manager exposes the VM lifecycle operations the CLI calls: create,
// list, start, stop, show, edit, resize, delete. It owns the record
// store, the artifact provisioner, and the process supervisor, and is
// the only component that combines them.
type Manager struct {
	store       *Store
	provisioner *Provisioner
	supervisor  *Supervisor
	catalog     *catalog.Catalog
	imagesDir   string
	seedsDir    string
	defaults    Defaults
	logger      *slog.Logger
}

// NewManager validates the configuration and builds the component stack.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Driver == nil {
		return nil, fmt.Errorf("manager: hypervisor driver is required")
	}
	if cfg.VMsDir == "" || cfg.ImagesDir == "" || cfg.SeedsDir == "" || cfg.RunDir == "" {
		return nil, fmt.Errorf("manager: vms, images, seeds, and run directories are required")
	}

	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Builtin()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seeds := NewSeedBuilder(cfg.SeedsDir)
	seeds.Logger = logger

	prov := NewProvisioner(seeds)
	prov.Logger = logger

	sup := NewSupervisor(cfg.RunDir, cfg.Driver)
	sup.Grace = cfg.Grace
	sup.Probe = cfg.Probe
	sup.Logger = logger

	return &Manager{
		store:       NewStore(cfg.VMsDir),
		provisioner: prov,
		supervisor:  sup,
		catalog:     cat,
		imagesDir:   cfg.ImagesDir,
		seedsDir:    cfg.SeedsDir,
		defaults:    cfg.Defaults.withFallbacks(cat),
		logger:      logger,
	}, nil
}

// Catalog returns the image table the manager resolves labels against.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// ListVMs returns all VM names in lexicographic order.
func (m *Manager) ListVMs() ([]string, error) {
	return m.store.List()
}

// RunningState derives the live run state of a VM from process
// inspection. A VM with no record reports Stopped.
func (m *Manager) RunningState(name string) State {
	return m.supervisor.StateOf(name)
}

// RunningPID returns the supervised process ID, or 0 when the VM has no
// live process.
func (m *Manager) RunningPID(name string) int {
	if m.supervisor.StateOf(name) != StateRunning {
		return 0
	}
	return m.supervisor.PIDOf(name)
}

// ShowVM loads the record for a VM. The returned record includes the
// login secret in cleartext; the info view displays it as-is.
func (m *Manager) ShowVM(name string) (*VMRecord, error) {
	return m.store.Load(name)
}

// CreateVM resolves the catalog entry, provisions the artifacts, and
// persists the record. Provisioning runs first so that a download failure
// leaves nothing behind: the record is only saved once both artifacts
// exist.
//
// The management port is checked for a local listener before any work
// happens; extra forwarding rules are not pre-checked.
func (m *Manager) CreateVM(ctx context.Context, spec CreateSpec) (*CreateResult, error) {
	if !ValidName(spec.Name) {
		return nil, &ValidationError{Field: "name", Message: fmt.Sprintf("%q must match %s", spec.Name, nameRe)}
	}
	if err := validateAuthorizedKeys(spec.SSHAuthorizedKeys); err != nil {
		return nil, err
	}
	if m.store.Exists(spec.Name) {
		return nil, fmt.Errorf("create %s: %w", spec.Name, ErrExists)
	}

	label := spec.Image
	if label == "" {
		label = m.defaults.Image
	}
	entry, err := m.catalog.Lookup(label)
	if err != nil {
		return nil, err
	}

	record := &VMRecord{
		Name:              spec.Name,
		Family:            entry.Family,
		Codename:          entry.Codename,
		SourceURL:         entry.URL,
		Hostname:          firstNonEmpty(spec.Hostname, entry.Hostname, spec.Name),
		Username:          firstNonEmpty(spec.Username, entry.Username),
		Secret:            firstNonEmpty(spec.Secret, entry.Secret),
		DiskSize:          firstNonEmpty(spec.DiskSize, m.defaults.DiskSize),
		MemoryMB:          firstPositive(spec.MemoryMB, m.defaults.MemoryMB),
		CPUs:              firstPositive(spec.CPUs, m.defaults.CPUs),
		SSHPort:           firstPositive(spec.SSHPort, m.defaults.SSHPort),
		GUI:               spec.GUI,
		ExtraForwards:     spec.ExtraForwards,
		SSHAuthorizedKeys: spec.SSHAuthorizedKeys,
		ImagePath:         ImagePathFor(m.imagesDir, spec.Name),
		SeedPath:          SeedPathFor(m.seedsDir, spec.Name),
		CreatedAt:         time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := checkPortFree(record.SSHPort); err != nil {
		return nil, err
	}

	arts, err := m.provisioner.Provision(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(record); err != nil {
		return nil, err
	}
	timing.FromContext(ctx).Mark("save record")

	m.logger.Info("vm created", "vm", record.Name, "image", label)
	return &CreateResult{Record: record, Warnings: arts.Warnings}, nil
}

// StartVM provisions idempotently, builds the forwarding plan, launches
// the process detached, and probes the management port when wait is set.
// Dropped forwarding rules and resize failures surface as warnings, not
// errors.
func (m *Manager) StartVM(ctx context.Context, name string, wait bool) (*StartResult, error) {
	record, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	if m.supervisor.StateOf(name) == StateRunning {
		return nil, fmt.Errorf("start %s: %w", name, ErrAlreadyRunning)
	}

	arts, err := m.provisioner.Provision(ctx, record)
	if err != nil {
		return nil, err
	}
	warnings := arts.Warnings

	plan, err := PlanForwards(record.SSHPort, record.ExtraForwards)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, plan.Dropped...)

	pid, err := m.supervisor.Start(ctx, record, plan)
	if err != nil {
		return nil, err
	}
	timing.FromContext(ctx).Mark("launch")

	result := &StartResult{Record: record, PID: pid, Warnings: warnings}
	if !wait {
		return result, nil
	}

	result.Ready = m.supervisor.WaitReady(ctx, record.SSHPort)
	timing.FromContext(ctx).Mark("probe")
	if result.Ready {
		m.logger.Info("vm ready", "vm", name, "port", record.SSHPort)
	} else {
		m.logger.Warn("vm did not become ready within the probe window", "vm", name, "port", record.SSHPort)
	}

	return result, nil
}

// StopVM terminates the VM process, gracefully first. Stopping a VM that
// is not running fails with ErrNotRunning; an unknown name with
// ErrNotFound.
func (m *Manager) StopVM(ctx context.Context, name string) error {
	if _, err := m.store.Load(name); err != nil {
		return err
	}
	return m.supervisor.Stop(ctx, name)
}

// EditVM applies a partial update and rewrites the whole record. When any
// of hostname, username, or secret changes, or the authorized keys are
// replaced, the seed is rebuilt before the record is saved. The cached
// disk image is never invalidated by an edit.
func (m *Manager) EditVM(ctx context.Context, name string, changes FieldChanges) (*VMRecord, error) {
	if changes.SSHAuthorizedKeys != nil {
		if err := validateAuthorizedKeys(*changes.SSHAuthorizedKeys); err != nil {
			return nil, err
		}
	}

	record, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	before := *record

	if changes.Hostname != nil {
		record.Hostname = *changes.Hostname
	}
	if changes.Username != nil {
		record.Username = *changes.Username
	}
	if changes.Secret != nil {
		record.Secret = *changes.Secret
	}
	if changes.MemoryMB != nil {
		record.MemoryMB = *changes.MemoryMB
	}
	if changes.CPUs != nil {
		record.CPUs = *changes.CPUs
	}
	if changes.SSHPort != nil {
		record.SSHPort = *changes.SSHPort
	}
	if changes.GUI != nil {
		record.GUI = *changes.GUI
	}
	if changes.ExtraForwards != nil {
		record.ExtraForwards = *changes.ExtraForwards
	}
	if changes.SSHAuthorizedKeys != nil {
		record.SSHAuthorizedKeys = *changes.SSHAuthorizedKeys
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if !record.IdentityEquals(&before) || changes.SSHAuthorizedKeys != nil {
		if _, err := m.provisioner.Seeds.Build(record); err != nil {
			return nil, err
		}
	}

	if err := m.store.Save(record); err != nil {
		return nil, err
	}
	m.logger.Info("vm updated", "vm", name)
	return record, nil
}

// ResizeVM grows the disk image and records the new size. The VM must be
// stopped; shrinking is rejected. The record keeps its old size when the
// image resize fails.
func (m *Manager) ResizeVM(ctx context.Context, name, newSize string) (*VMRecord, error) {
	record, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	if m.supervisor.StateOf(name) == StateRunning {
		return nil, fmt.Errorf("resize %s: %w", name, ErrVMRunning)
	}
	if !ValidDiskSize(newSize) {
		return nil, &ValidationError{Field: "disk_size", Message: fmt.Sprintf("%q must be a magnitude plus unit, e.g. 50G", newSize)}
	}

	newBytes, err := units.RAMInBytes(newSize)
	if err != nil {
		return nil, &ValidationError{Field: "disk_size", Message: err.Error()}
	}
	curBytes, err := record.DiskSizeBytes()
	if err != nil {
		return nil, err
	}
	if newBytes <= curBytes {
		return nil, &ValidationError{
			Field:   "disk_size",
			Message: fmt.Sprintf("new size %s must be larger than current %s", newSize, record.DiskSize),
		}
	}

	if err := m.provisioner.GrowDisk(ctx, record.ImagePath, newSize); err != nil {
		return nil, fmt.Errorf("resize %s: %w", name, err)
	}

	record.DiskSize = newSize
	if err := m.store.Save(record); err != nil {
		return nil, err
	}
	m.logger.Info("vm disk resized", "vm", name, "size", newSize)
	return record, nil
}

// DeleteVM removes the record, both artifacts, and any PID file. The
// confirmation must be the exact VM name; anything else aborts with
// ErrConfirmationDenied and leaves everything untouched. The VM must be
// stopped.
func (m *Manager) DeleteVM(name, confirmation string) error {
	record, err := m.store.Load(name)
	if err != nil {
		return err
	}
	if confirmation != record.Name {
		return fmt.Errorf("delete %s: %w", name, ErrConfirmationDenied)
	}
	if m.supervisor.StateOf(name) == StateRunning {
		return fmt.Errorf("delete %s: %w", name, ErrVMRunning)
	}

	if err := DeleteArtifacts(record); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if err := m.store.Delete(name); err != nil {
		return err
	}
	os.Remove(PIDPathFor(m.supervisor.RunDir, name))

	m.logger.Info("vm deleted", "vm", name)
	return nil
}

// validateAuthorizedKeys rejects unparseable public keys before they
// reach a record or a seed document.
func validateAuthorizedKeys(keys []string) error {
	for i, key := range keys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return &ValidationError{
				Field:   "ssh_authorized_keys",
				Message: fmt.Sprintf("key %d is not a valid public key", i+1),
			}
		}
	}
	return nil
}

// checkPortFree rejects a management port that already has a local
// listener. Only the management port gets this check.
func checkPortFree(port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return &ValidationError{Field: "ssh_port", Message: fmt.Sprintf("port %d is already in use", port)}
	}
	ln.Close()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
