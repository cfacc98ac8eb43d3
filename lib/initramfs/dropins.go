package initramfs

// The composefs root is assembled by composefs-setup-root.service inside the
// initramfs. Everything that normally orders itself against the root block
// device has to wait for it instead, and fsck is pointless on a verity
// backed image. These drop-ins wire that ordering into the stock systemd
// units; the preset enables the setup service itself.

const dropInName = "50-bootc-composefs.conf"

const presetName = "90-bootc-composefs.preset"

const presetContent = "enable composefs-setup-root.service\n"

const orderingDropIn = `[Unit]
DefaultDependencies=no
After=composefs-setup-root.service
`

const requiresDropIn = `[Unit]
DefaultDependencies=no
Requires=composefs-setup-root.service
After=composefs-setup-root.service
`

const skipFsckDropIn = `[Unit]
ConditionKernelCommandLine=!composefs
`

// DropIn is a systemd unit override shipped into the initramfs.
type DropIn struct {
	// Unit is the overridden unit, e.g. "sysroot.mount".
	Unit string
	// Content of the drop-in file.
	Content string
}

// DropIns is the fixed override set installed by the dracut module.
var DropIns = []DropIn{
	{Unit: "sysroot.mount", Content: requiresDropIn},
	{Unit: "initrd-root-fs.target", Content: orderingDropIn},
	{Unit: "initrd-root-device.target", Content: orderingDropIn},
	{Unit: "initrd-fs.target", Content: orderingDropIn},
	{Unit: "initrd.target", Content: orderingDropIn},
	{Unit: "initrd-parse-etc.service", Content: orderingDropIn},
	{Unit: "initrd-switch-root.service", Content: orderingDropIn},
	{Unit: "initrd-cleanup.service", Content: orderingDropIn},
	{Unit: "initrd-udevadm-cleanup-db.service", Content: orderingDropIn},
	{Unit: "local-fs.target", Content: orderingDropIn},
	{Unit: "systemd-fsck-root.service", Content: skipFsckDropIn},
}

// Path returns the drop-in location relative to the initramfs root.
func (d DropIn) Path() string {
	return "usr/lib/systemd/system/" + d.Unit + ".d/" + dropInName
}

// PresetPath is the preset location relative to the initramfs root.
const PresetPath = "usr/lib/systemd/system-preset/" + presetName
