package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigreer/diskclean/internal/hints"
)

const lsblkNew = `{
   "blockdevices": [
      {"name":"sda", "path":"/dev/sda", "maj:min":"8:0", "type":"disk", "size":500107862016, "rota":true,
       "model":"ST500DM002-1BD142  ", "vendor":"ATA     ", "serial":"Z3T1ABCD", "wwn":"0x5000c500a1b2c3d4", "hctl":"0:0:0:0"},
      {"name":"sr0", "path":"/dev/sr0", "maj:min":"11:0", "type":"rom", "size":1073741312, "rota":true,
       "model":"DVD-ROM", "vendor":"HL-DT-ST", "serial":null, "wwn":null, "hctl":"2:0:0:0"},
      {"name":"nvme0n1", "path":"/dev/nvme0n1", "maj:min":"259:0", "type":"disk", "size":1000204886016, "rota":false,
       "model":"INTEL SSDPE2KX010T8", "vendor":null, "serial":"PHLJ1234", "wwn":"eui.01000000000000005cd2e4", "hctl":null}
   ]
}`

const lsblkOld = `{
   "blockdevices": [
      {"name":"sdb", "maj:min":"8:16", "type":"disk", "size":"256060514304", "rota":"0",
       "model":"Samsung SSD 860", "vendor":"", "serial":"S3Z9", "wwn":null, "hctl":"1:0:0:0"}
   ]
}`

func TestParseLsblk(t *testing.T) {
	records, err := parseLsblk([]byte(lsblkNew))
	require.NoError(t, err)
	require.Len(t, records, 2)

	sda := records[0].device
	assert.Equal(t, "8:0", records[0].majMin)
	assert.Equal(t, "/dev/sda", sda.Name)
	require.NotNil(t, sda.Size)
	assert.Equal(t, uint64(500107862016), *sda.Size)
	require.NotNil(t, sda.Rotational)
	assert.True(t, *sda.Rotational)
	assert.Equal(t, "ST500DM002-1BD142", *sda.Model)
	assert.Equal(t, "ATA", *sda.Vendor)
	assert.Equal(t, "0:0:0:0", *sda.HCTL)

	nvme := records[1].device
	assert.Equal(t, "/dev/nvme0n1", nvme.Name)
	assert.False(t, *nvme.Rotational)
	assert.Nil(t, nvme.Vendor)
	assert.Nil(t, nvme.HCTL)
}

func TestParseLsblkStringValues(t *testing.T) {
	records, err := parseLsblk([]byte(lsblkOld))
	require.NoError(t, err)
	require.Len(t, records, 1)

	d := records[0].device
	assert.Equal(t, "/dev/sdb", d.Name)
	assert.Equal(t, uint64(256060514304), *d.Size)
	assert.False(t, *d.Rotational)
	assert.Nil(t, d.Vendor)
}

func TestParseLsblkInvalid(t *testing.T) {
	_, err := parseLsblk([]byte("not json"))
	assert.Error(t, err)

	_, err = parseLsblk([]byte(`{"blockdevices":[{"name":"sda","type":"disk","size":"huge"}]}`))
	assert.Error(t, err)
}

func TestParseUdevData(t *testing.T) {
	data := strings.Join([]string{
		"S:disk/by-id/wwn-0x5000c500a1b2c3d4",
		"E:ID_WWN=0x5000c500a1b2c3d4",
		"E:ID_WWN_WITH_EXTENSION=0x5000c500a1b2c3d40000000000000001",
		"E:ID_WWN_VENDOR_EXTENSION=0x0000000000000001",
		"E:ID_PATH=pci-0000:00:17.0-ata-1",
		"E:ID_SERIAL_SHORT=Z3T1ABCD",
		"E:BROKEN",
		"",
	}, "\n")

	props, err := parseUdevData(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "0x5000c500a1b2c3d4", props["ID_WWN"])
	assert.Equal(t, "pci-0000:00:17.0-ata-1", props["ID_PATH"])
	assert.NotContains(t, props, "BROKEN")

	d := hints.Device{Name: "/dev/sda", Serial: ptr("FROM-LSBLK")}
	applyUdev(&d, props)
	assert.Equal(t, "0x5000c500a1b2c3d4", *d.WWN)
	assert.Equal(t, "0x5000c500a1b2c3d40000000000000001", *d.WWNWithExtension)
	assert.Equal(t, "0x0000000000000001", *d.WWNVendorExtension)
	assert.Equal(t, "/dev/disk/by-path/pci-0000:00:17.0-ata-1", *d.ByPath)
	assert.Equal(t, "FROM-LSBLK", *d.Serial, "existing values are kept")
	assert.Nil(t, d.Model)
}

func TestEnrich(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	udevDir := filepath.Join(dir, "udev")
	byPathDir := filepath.Join(dir, "by-path")
	require.NoError(t, os.MkdirAll(udevDir, 0755))
	require.NoError(t, os.MkdirAll(byPathDir, 0755))

	// stand-ins for device nodes
	sda := filepath.Join(dir, "sda")
	sdb := filepath.Join(dir, "sdb")
	for _, p := range []string{sda, sdb, sdb + "1"} {
		require.NoError(t, os.WriteFile(p, nil, 0644))
	}
	require.NoError(t, os.Symlink(sdb, filepath.Join(byPathDir, "pci-0000:00:17.0-ata-2")))
	require.NoError(t, os.Symlink(sdb+"1", filepath.Join(byPathDir, "pci-0000:00:17.0-ata-2-part1")))

	require.NoError(t, os.WriteFile(filepath.Join(udevDir, "b8:0"),
		[]byte("E:ID_WWN_WITH_EXTENSION=0xabc\nE:ID_PATH=pci-0000:00:17.0-ata-1\n"), 0644))

	records := []record{
		{majMin: "8:0", device: hints.Device{Name: sda}},
		{majMin: "8:16", device: hints.Device{Name: sdb}},
	}
	enrich(records, udevDir, byPathDir)

	assert.Equal(t, "0xabc", *records[0].device.WWNWithExtension)
	assert.Equal(t, "/dev/disk/by-path/pci-0000:00:17.0-ata-1", *records[0].device.ByPath)
	require.NotNil(t, records[1].device.ByPath)
	assert.Equal(t, filepath.Join(byPathDir, "pci-0000:00:17.0-ata-2"), *records[1].device.ByPath)
}

func TestParseDeviceFile(t *testing.T) {
	list := []byte(`
- name: /dev/sda
  size: 500107862016
  rotational: true
- name: /dev/sdb
  serial: "0001"
  rotational: false
`)
	devices, err := parseDeviceFile(list)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, uint64(500107862016), *devices[0].Size)
	assert.Equal(t, "0001", *devices[1].Serial)
	assert.False(t, *devices[1].Rotational)

	wrapped := []byte(`{"devices": [{"name": "/dev/nvme0n1", "model": "INTEL"}]}`)
	devices, err = parseDeviceFile(wrapped)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "INTEL", *devices[0].Model)

	_, err = parseDeviceFile([]byte(`[{"size": 1}]`))
	assert.ErrorContains(t, err, "has no name")

	_, err = parseDeviceFile([]byte(`"just a string"`))
	assert.Error(t, err)

	devices, err = parseDeviceFile(nil)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices:\n  - name: /dev/vda\n"), 0644))

	devices, err := (&FileSource{Path: path}).Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/vda", devices[0].Name)

	_, err = (&FileSource{Path: filepath.Join(t.TempDir(), "missing.yaml")}).Devices(context.Background())
	assert.Error(t, err)
}

type countingSource struct {
	calls   int
	devices []hints.Device
	err     error
}

func (s *countingSource) Devices(ctx context.Context) ([]hints.Device, error) {
	s.calls++
	return s.devices, s.err
}

func TestEnumeratorCaches(t *testing.T) {
	src := &countingSource{devices: []hints.Device{{Name: "/dev/sda"}}}
	e := NewEnumerator(src)
	ctx := context.Background()

	first, err := e.Devices(ctx)
	require.NoError(t, err)
	first[0].Name = "/dev/mutated"

	second, err := e.Devices(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda", second[0].Name)
	assert.Equal(t, 1, src.calls)

	e.Invalidate()
	_, err = e.Devices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	_, err = e.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestEnumeratorClonesAttributes(t *testing.T) {
	size := uint64(512)
	src := &countingSource{devices: []hints.Device{{Name: "/dev/sda", Serial: ptr("S1"), Size: &size}}}
	e := NewEnumerator(src)
	ctx := context.Background()

	first, err := e.Devices(ctx)
	require.NoError(t, err)
	*first[0].Serial = "mutated"
	*first[0].Size = 0

	second, err := e.Devices(ctx)
	require.NoError(t, err)
	assert.Equal(t, "S1", *second[0].Serial)
	assert.Equal(t, uint64(512), *second[0].Size)
	assert.Equal(t, "S1", *src.devices[0].Serial)
	assert.Equal(t, 1, src.calls)
}

func TestEnumeratorError(t *testing.T) {
	boom := errors.New("lsblk missing")
	e := NewEnumerator(&countingSource{err: boom})

	_, err := e.Devices(context.Background())
	assert.ErrorIs(t, err, boom)
}

const lsscsiOutput = `[0:0:0:0]    disk    ATA      ST500DM002-1BD14 KC45  /dev/sda
[1:0:0:0]    disk    ATA      Samsung SSD 860  4B6Q  /dev/sdb
[2:0:0:0]    cd/dvd  HL-DT-ST DVDRAM GH24NSD1  LG00  /dev/sr0
[3:0:12:0]   enclosu LSI      SAS3x28          0601  -
`

func TestParseLsscsi(t *testing.T) {
	addrs := parseLsscsi([]byte(lsscsiOutput))
	assert.Equal(t, map[string]string{
		"/dev/sda": "0:0:0:0",
		"/dev/sdb": "1:0:0:0",
	}, addrs)
}

func TestApplySCSIAddresses(t *testing.T) {
	records := []record{
		{device: hints.Device{Name: "/dev/sda", HCTL: ptr("9:9:9:9")}},
		{device: hints.Device{Name: "/dev/sdb"}},
		{device: hints.Device{Name: "/dev/nvme0n1"}},
	}
	applySCSIAddresses(records, parseLsscsi([]byte(lsscsiOutput)))

	assert.Equal(t, "9:9:9:9", *records[0].device.HCTL)
	assert.Equal(t, "1:0:0:0", *records[1].device.HCTL)
	assert.Nil(t, records[2].device.HCTL)
}

func TestParseLsblkSkipsVirtualDisks(t *testing.T) {
	records, err := parseLsblk([]byte(`{"blockdevices":[
		{"name":"zram0", "maj:min":"252:0", "type":"disk", "size":8589934592, "rota":false},
		{"name":"nbd0", "maj:min":"43:0", "type":"disk", "size":0, "rota":false},
		{"name":"vda", "maj:min":"253:0", "type":"disk", "size":21474836480, "rota":true}
	]}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/dev/vda", records[0].device.Name)
}

func writeSysfs(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSysfsSource(t *testing.T) {
	root := t.TempDir()

	writeSysfs(t, root, "sda/device/model", "ST4000NM0035-1V4\n")
	writeSysfs(t, root, "sda/device/vendor", "ATA     \n")
	writeSysfs(t, root, "sda/device/wwid", "naa.5000c500a1b2c3d4\n")
	writeSysfs(t, root, "sda/device/vpd_pg80", "\x00\x80\x00\x08ZC1ABCDE")
	writeSysfs(t, root, "sda/size", "7814037168\n")
	writeSysfs(t, root, "sda/queue/rotational", "1\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sda/device/scsi_device/0:0:3:0"), 0755))

	writeSysfs(t, root, "nvme0n1/device/model", "INTEL SSDPE2KX010T8\n")
	writeSysfs(t, root, "nvme0n1/device/serial", "PHLJ1234\n")
	writeSysfs(t, root, "nvme0n1/size", "1953525168\n")
	writeSysfs(t, root, "nvme0n1/queue/rotational", "0\n")

	// no backing device
	writeSysfs(t, root, "loop0/size", "0\n")
	writeSysfs(t, root, "zram0/device/model", "\n")

	devices, err := (&SysfsSource{Root: root}).Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	nvme, sda := devices[0], devices[1]

	assert.Equal(t, "/dev/sda", sda.Name)
	assert.Equal(t, "ST4000NM0035-1V4", *sda.Model)
	assert.Equal(t, "ATA", *sda.Vendor)
	assert.Equal(t, "ZC1ABCDE", *sda.Serial)
	assert.Equal(t, "0x5000c500a1b2c3d4", *sda.WWN)
	assert.Equal(t, uint64(7814037168*512), *sda.Size)
	assert.True(t, *sda.Rotational)
	assert.Equal(t, "0:0:3:0", *sda.HCTL)

	assert.Equal(t, "/dev/nvme0n1", nvme.Name)
	assert.Equal(t, "PHLJ1234", *nvme.Serial)
	assert.False(t, *nvme.Rotational)
	assert.Nil(t, nvme.HCTL)
	assert.Nil(t, nvme.WWN)
}

func TestWWNFromWWID(t *testing.T) {
	assert.Equal(t, "0x5000c500a1b2c3d4", *wwnFromWWID("naa.5000C500A1B2C3D4"))
	assert.Nil(t, wwnFromWWID("t10.ATA     ST4000NM0035-1V4          ZC1ABCDE"))
	assert.Nil(t, wwnFromWWID("eui.01000000000000005cd2e4"))
	assert.Nil(t, wwnFromWWID("naa."))
}

func TestSourcesAgreeOnWWNHint(t *testing.T) {
	records, err := parseLsblk([]byte(lsblkNew))
	require.NoError(t, err)
	fromLsblk := []hints.Device{records[0].device}

	root := t.TempDir()
	writeSysfs(t, root, "sda/device/model", "ST500DM002-1BD142\n")
	writeSysfs(t, root, "sda/device/wwid", "naa.5000c500a1b2c3d4\n")
	writeSysfs(t, root, "sda/size", "976773168\n")
	fromSysfs, err := (&SysfsSource{Root: root}).Devices(context.Background())
	require.NoError(t, err)

	for _, hint := range []map[string]any{
		{"wwn": "0x5000c500a1b2c3d4"},
		{"wwn": "0x5000C500A1B2C3D4", "size": "500107862016"},
	} {
		for _, devices := range [][]hints.Device{fromLsblk, fromSysfs} {
			seq, err := hints.FindDevicesByHints(devices, hint)
			require.NoError(t, err)
			var got []string
			for d := range seq {
				got = append(got, d.Name)
			}
			assert.Equal(t, []string{"/dev/sda"}, got, "%v", hint)
		}
	}
}

func TestSysfsSourceMissingRoot(t *testing.T) {
	_, err := (&SysfsSource{Root: filepath.Join(t.TempDir(), "absent")}).Devices(context.Background())
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	broken := &countingSource{err: errors.New("lsblk: not found")}
	working := &countingSource{devices: []hints.Device{{Name: "/dev/vda"}}}

	devices, err := Fallback{broken, working}.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []hints.Device{{Name: "/dev/vda"}}, devices)
	assert.Equal(t, 1, broken.calls)

	_, err = Fallback{broken, broken}.Devices(context.Background())
	assert.ErrorContains(t, err, "lsblk: not found")

	_, err = Fallback{}.Devices(context.Background())
	assert.Error(t, err)
}
