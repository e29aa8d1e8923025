package nif

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// FormatVersion identifies the layout of a NIF stream. The four dotted
// components are packed big-end-first into a uint32 on disk (20.2.0.7 is
// 0x14020007). User is the vendor user version and BSVersion the Bethesda
// stream version carried in the BS header; both are zero when absent.
type FormatVersion struct {
	Major     uint8
	Minor     uint8
	Patch     uint8
	Build     uint8
	User      uint32
	BSVersion uint32
}

// Common versions.
var (
	V4_0_0_2    = VersionFromUint32(0x04000002)
	V4_1_0_1    = VersionFromUint32(0x04010001)
	V5_0_0_1    = VersionFromUint32(0x05000001)
	V5_0_0_6    = VersionFromUint32(0x05000006)
	V10_0_1_0   = VersionFromUint32(0x0A000100)
	V10_0_1_2   = VersionFromUint32(0x0A000102)
	V10_0_1_8   = VersionFromUint32(0x0A000108)
	V10_1_0_0   = VersionFromUint32(0x0A010000)
	V10_1_0_106 = VersionFromUint32(0x0A01006A)
	V20_0_0_3   = VersionFromUint32(0x14000003)
	V20_0_0_4   = VersionFromUint32(0x14000004)
	V20_0_0_5   = VersionFromUint32(0x14000005)
	V20_1_0_1   = VersionFromUint32(0x14010001)
	V20_2_0_5   = VersionFromUint32(0x14020005)
	V20_2_0_7   = VersionFromUint32(0x14020007)
)

// VersionFromUint32 unpacks the on-disk version number.
func VersionFromUint32(v uint32) FormatVersion {
	return FormatVersion{
		Major: uint8(v >> 24),
		Minor: uint8(v >> 16),
		Patch: uint8(v >> 8),
		Build: uint8(v),
	}
}

// ParseVersion parses a dotted version such as "20.2.0.7". Missing trailing
// components are zero.
func ParseVersion(s string) (FormatVersion, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return FormatVersion{}, errors.Newf("invalid version %q", s)
	}
	var nums [4]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return FormatVersion{}, errors.Wrapf(err, "invalid version %q", s)
		}
		nums[i] = uint8(n)
	}
	return FormatVersion{Major: nums[0], Minor: nums[1], Patch: nums[2], Build: nums[3]}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) FormatVersion {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Uint32 packs the numeric components; User and BSVersion are not included.
func (v FormatVersion) Uint32() uint32 {
	return uint32(v.Major)<<24 | uint32(v.Minor)<<16 | uint32(v.Patch)<<8 | uint32(v.Build)
}

// String renders the dotted numeric part.
func (v FormatVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// Describe renders the version with its user and Bethesda versions.
func (v FormatVersion) Describe() string {
	s := v.String()
	if v.User != 0 || v.BSVersion != 0 {
		s += fmt.Sprintf(" (user %d, bs %d)", v.User, v.BSVersion)
	}
	return s
}

// Compare orders by the numeric version only.
func (v FormatVersion) Compare(o FormatVersion) int {
	a, b := v.Uint32(), o.Uint32()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Less reports v < o numerically.
func (v FormatVersion) Less(o FormatVersion) bool { return v.Compare(o) < 0 }

// AtLeast reports v >= o numerically.
func (v FormatVersion) AtLeast(o FormatVersion) bool { return v.Compare(o) >= 0 }

// Numeric strips User and BSVersion.
func (v FormatVersion) Numeric() FormatVersion {
	return FormatVersion{Major: v.Major, Minor: v.Minor, Patch: v.Patch, Build: v.Build}
}

// HeaderString is the signature line written at the start of a file,
// without the trailing newline.
func (v FormatVersion) HeaderString() string {
	if v.Compare(V10_0_1_0) <= 0 {
		return NetImmersePrefix + v.String()
	}
	return GamebryoPrefix + v.String()
}

// Signature prefixes.
const (
	NetImmersePrefix = "NetImmerse File Format, Version "
	GamebryoPrefix   = "Gamebryo File Format, Version "
)

// HasBSHeader reports whether a stream at this version carries the
// Bethesda stream header after the block count.
func (v FormatVersion) HasBSHeader() bool {
	if v.User < 3 {
		return false
	}
	n := v.Uint32()
	switch {
	case n == V10_0_1_2.Uint32(), n == V20_2_0_7.Uint32(), n == V20_0_0_5.Uint32():
		return true
	case n >= V10_1_0_0.Uint32() && n <= V20_0_0_4.Uint32() && v.User <= 11:
		return true
	}
	return false
}
