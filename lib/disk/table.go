// Package disk models GPT partition tables for composefs-native installs
// and provisions loop-backed disk images to apply them to.
package disk

import (
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
)

// GPT partition type GUIDs used by the composefs install layout.
const (
	// TypeESP is the EFI System Partition type.
	TypeESP = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"

	// TypeXBootLdr is the extended boot loader partition type, used for /boot.
	TypeXBootLdr = "BC13C2FF-59E6-4262-A352-B275FD6F7172"

	// TypeLinuxRoot is the Linux filesystem type used for the composefs
	// backing root partition.
	TypeLinuxRoot = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
)

// PartitionTable describes a GPT disk layout.
type PartitionTable struct {
	// Size is the total size of the disk image.
	Size datasize.ByteSize
	// UUID identifies the partition table itself.
	UUID string
	// Type of the table. Only "gpt" is produced here.
	Type string
	// Partitions in on-disk order.
	Partitions []Partition
}

// Partition is a single GPT partition.
type Partition struct {
	// Size of the partition. Zero means "rest of the disk" and is only
	// valid for the last partition.
	Size datasize.ByteSize
	// Type is the GPT partition type GUID.
	Type string
	// Name is the GPT partition label.
	Name string
	// UUID of the partition.
	UUID string
	// Filesystem to create on the partition. Nil leaves it raw.
	Filesystem *Filesystem
}

// Filesystem describes the filesystem created on a partition.
type Filesystem struct {
	// Type is the mkfs family, e.g. "vfat" or "ext4".
	Type string
	// Label passed to mkfs.
	Label string
	// Mountpoint in the installed system.
	Mountpoint string
	// MkfsArgs are extra arguments for mkfs, e.g. verity support.
	MkfsArgs []string
}

// DefaultComposefsLayout returns the three partition layout expected by a
// composefs-native install: an ESP, an XBOOTLDR /boot partition, and a root
// partition holding the composefs backing store with fs-verity enabled.
func DefaultComposefsLayout(total datasize.ByteSize) PartitionTable {
	return PartitionTable{
		Size: total,
		UUID: uuid.NewString(),
		Type: "gpt",
		Partitions: []Partition{
			{
				Size: 512 * datasize.MB,
				Type: TypeESP,
				Name: "EFI-SYSTEM",
				UUID: uuid.NewString(),
				Filesystem: &Filesystem{
					Type:       "vfat",
					Label:      "EFI-SYSTEM",
					Mountpoint: "/boot/efi",
				},
			},
			{
				Size: 1 * datasize.GB,
				Type: TypeXBootLdr,
				Name: "boot",
				UUID: uuid.NewString(),
				Filesystem: &Filesystem{
					Type:       "ext4",
					Label:      "boot",
					Mountpoint: "/boot",
				},
			},
			{
				// rest of the disk
				Type: TypeLinuxRoot,
				Name: "root",
				UUID: uuid.NewString(),
				Filesystem: &Filesystem{
					Type:       "ext4",
					Label:      "root",
					Mountpoint: "/",
					MkfsArgs:   []string{"-O", "verity"},
				},
			},
		},
	}
}

// RootPartition returns the partition mounted at / or nil.
func (pt *PartitionTable) RootPartition() *Partition {
	for i, p := range pt.Partitions {
		if p.Filesystem != nil && p.Filesystem.Mountpoint == "/" {
			return &pt.Partitions[i]
		}
	}
	return nil
}

// BootPartition returns the partition mounted at /boot or nil.
func (pt *PartitionTable) BootPartition() *Partition {
	for i, p := range pt.Partitions {
		if p.Filesystem != nil && p.Filesystem.Mountpoint == "/boot" {
			return &pt.Partitions[i]
		}
	}
	return nil
}

// ESP returns the EFI system partition or nil.
func (pt *PartitionTable) ESP() *Partition {
	for i, p := range pt.Partitions {
		if p.Type == TypeESP {
			return &pt.Partitions[i]
		}
	}
	return nil
}

// Validate checks the structural invariants the installer relies on.
func (pt *PartitionTable) Validate() error {
	if pt.Type != "gpt" {
		return fmt.Errorf("%w: table type %q", ErrInvalidLayout, pt.Type)
	}
	if len(pt.Partitions) == 0 {
		return fmt.Errorf("%w: no partitions", ErrInvalidLayout)
	}
	for i, p := range pt.Partitions {
		if p.Type == "" {
			return fmt.Errorf("%w: partition %d has no type GUID", ErrInvalidLayout, i)
		}
		if p.Size == 0 && i != len(pt.Partitions)-1 {
			return fmt.Errorf("%w: only the last partition may be unsized", ErrInvalidLayout)
		}
	}
	return nil
}

// SfdiskScript renders the table as an sfdisk(8) input script.
func (pt *PartitionTable) SfdiskScript() string {
	var b strings.Builder
	b.WriteString("label: gpt\n")
	if pt.UUID != "" {
		fmt.Fprintf(&b, "label-id: %s\n", pt.UUID)
	}
	b.WriteString("\n")

	for _, p := range pt.Partitions {
		var fields []string
		if p.Size != 0 {
			fields = append(fields, fmt.Sprintf("size=%dMiB", p.Size.Bytes()/datasize.MB.Bytes()))
		}
		fields = append(fields, fmt.Sprintf("type=%s", p.Type))
		if p.UUID != "" {
			fields = append(fields, fmt.Sprintf("uuid=%s", p.UUID))
		}
		if p.Name != "" {
			fields = append(fields, fmt.Sprintf("name=%q", p.Name))
		}
		b.WriteString(strings.Join(fields, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
