package catalog

// builtinEntries is the compiled-in image table. Operators can replace it
// entirely by dropping a catalog.yaml into the config directory.
func builtinEntries() []Entry {
	return []Entry{
		{
			Label:    "ubuntu-24.04",
			Family:   "ubuntu",
			Codename: "noble",
			URL:      "https://cloud-images.ubuntu.com/noble/current/noble-server-cloudimg-amd64.img",
			Hostname: "ubuntu",
			Username: "ubuntu",
			Secret:   "changeme",
		},
		{
			Label:    "ubuntu-22.04",
			Family:   "ubuntu",
			Codename: "jammy",
			URL:      "https://cloud-images.ubuntu.com/jammy/current/jammy-server-cloudimg-amd64.img",
			Hostname: "ubuntu",
			Username: "ubuntu",
			Secret:   "changeme",
		},
		{
			Label:    "debian-12",
			Family:   "debian",
			Codename: "bookworm",
			URL:      "https://cloud.debian.org/images/cloud/bookworm/latest/debian-12-generic-amd64.qcow2",
			Hostname: "debian",
			Username: "debian",
			Secret:   "changeme",
		},
		{
			Label:    "rocky-9",
			Family:   "rocky",
			Codename: "9",
			URL:      "https://dl.rockylinux.org/pub/rocky/9/images/x86_64/Rocky-9-GenericCloud-Base.latest.x86_64.qcow2",
			Hostname: "rocky",
			Username: "rocky",
			Secret:   "changeme",
		},
		{
			Label:    "opensuse-leap-15.6",
			Family:   "opensuse",
			Codename: "leap-15.6",
			URL:      "https://download.opensuse.org/distribution/leap/15.6/appliances/openSUSE-Leap-15.6-Minimal-VM.x86_64-Cloud.qcow2",
			Hostname: "opensuse",
			Username: "opensuse",
			Secret:   "changeme",
		},
		{
			Label:    "arch",
			Family:   "arch",
			Codename: "rolling",
			URL:      "https://geo.mirror.pkgbuild.com/images/latest/Arch-Linux-x86_64-cloudimg.qcow2",
			Hostname: "arch",
			Username: "arch",
			Secret:   "changeme",
		},
		{
			Label:    "alpine-3.20",
			Family:   "alpine",
			Codename: "3.20",
			URL:      "https://dl-cdn.alpinelinux.org/alpine/v3.20/releases/cloud/nocloud_alpine-3.20.3-x86_64-bios-cloudinit-r0.qcow2",
			Hostname: "alpine",
			Username: "alpine",
			Secret:   "changeme",
		},
	}
}
