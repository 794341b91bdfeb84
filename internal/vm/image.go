package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/progamer242688/vm/internal/timing"
)

// ResizeFunc grows a disk image to a target size.
type ResizeFunc func(ctx context.Context, imagePath, size string) error

// Artifacts are the provisioned files backing one VM.
type Artifacts struct {
	ImagePath string
	SeedPath  string

	// Warnings collects non-fatal provisioning problems, currently only
	// resize failures.
	Warnings []string
}

// Provisioner materializes a record's artifacts: it downloads the base
// image once (the cache is keyed by the file's existence, no checksums),
// attempts to grow it to the target size, and always rebuilds the seed.
type Provisioner struct {
	// Seeds builds the first-boot media.
	Seeds *SeedBuilder

	// Client overrides the HTTP client used for downloads.
	// If nil, http.DefaultClient is used.
	Client *http.Client

	// Resize overrides disk resizing. If nil, QemuImgResize is used.
	Resize ResizeFunc

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewProvisioner creates a provisioner using the given seed builder.
func NewProvisioner(seeds *SeedBuilder) *Provisioner {
	return &Provisioner{Seeds: seeds}
}

func (p *Provisioner) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *Provisioner) resizeFunc() ResizeFunc {
	if p.Resize != nil {
		return p.Resize
	}
	return QemuImgResize
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Provision ensures both artifacts exist for the record. Download failure
// is fatal and leaves no partial image; a resize failure is reported as a
// warning and provisioning continues; a seed build failure is fatal.
//
// The operation is idempotent on the image - two consecutive calls with an
// unchanged record download at most once - while the seed is rebuilt on
// every call.
func (p *Provisioner) Provision(ctx context.Context, record *VMRecord) (*Artifacts, error) {
	arts := &Artifacts{ImagePath: record.ImagePath}

	downloaded, err := p.ensureImage(ctx, record)
	if err != nil {
		return nil, err
	}
	if downloaded {
		p.logger().Info("base image downloaded", "vm", record.Name, "url", record.SourceURL)
	} else {
		p.logger().Info("base image cached", "vm", record.Name, "path", record.ImagePath)
	}
	timing.FromContext(ctx).Mark("image")

	if err := p.resizeFunc()(ctx, record.ImagePath, record.DiskSize); err != nil {
		warning := fmt.Sprintf("could not grow disk to %s: %v", record.DiskSize, err)
		arts.Warnings = append(arts.Warnings, warning)
		p.logger().Warn("disk resize failed", "vm", record.Name, "size", record.DiskSize, "error", err)
	}
	timing.FromContext(ctx).Mark("resize")

	seedPath, err := p.Seeds.Build(record)
	if err != nil {
		return nil, err
	}
	arts.SeedPath = seedPath
	timing.FromContext(ctx).Mark("seed")

	return arts, nil
}

// ensureImage downloads the base image unless the file already exists.
// Reports whether a download happened.
func (p *Provisioner) ensureImage(ctx context.Context, record *VMRecord) (bool, error) {
	if _, err := os.Stat(record.ImagePath); err == nil {
		return false, nil // Already exists
	}
	if err := os.MkdirAll(filepath.Dir(record.ImagePath), 0755); err != nil {
		return false, fmt.Errorf("create images dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, record.SourceURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: %s (URL: %s)", ErrDownloadFailed, resp.Status, record.SourceURL)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := record.ImagePath + ".partial"
	f, err := os.Create(tmpPath)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	_, err = io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if err := os.Rename(tmpPath, record.ImagePath); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return true, nil
}

// GrowDisk grows the disk image to size. Unlike the resize attempt during
// provisioning, a failure here is returned to the caller.
func (p *Provisioner) GrowDisk(ctx context.Context, imagePath, size string) error {
	return p.resizeFunc()(ctx, imagePath, size)
}

// QemuImgResize grows a disk image in place using qemu-img.
func QemuImgResize(ctx context.Context, imagePath, size string) error {
	bin, err := exec.LookPath("qemu-img")
	if err != nil {
		return fmt.Errorf("qemu-img not found in PATH")
	}
	if output, err := exec.CommandContext(ctx, bin, "resize", imagePath, size).CombinedOutput(); err != nil {
		return fmt.Errorf("qemu-img resize: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// DeleteArtifacts removes the record's image and seed files. Files already
// gone are not an error.
func DeleteArtifacts(record *VMRecord) error {
	for _, path := range []string{record.ImagePath, record.SeedPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete artifact: %w", err)
		}
	}
	return nil
}
