package ubsan

// Version information for the Pure-Go UBSan runtime.
const (
	// Version is the current version of the ubsan runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the sanitizer.
type Info struct {
	// Version is the runtime version string.
	Version string

	// ABI names the callback surface the dispatch layer mirrors.
	ABI string

	// Enabled indicates whether the runtime is active.
	Enabled bool
}

// GetInfo returns information about the sanitizer runtime.
//
// Example:
//
//	info := ubsan.GetInfo()
//	fmt.Printf("UBSan runtime %s (%s)\n", info.Version, info.ABI)
func GetInfo() Info {
	return Info{
		Version: Version,
		ABI:     "clang -fsanitize=undefined",
		Enabled: true, // Always enabled when using this package
	}
}
