package version

var (
	// CurrentCommit is set by the build via ldflags.
	CurrentCommit string

	// BuildVersion is the local build version.
	BuildVersion = "v0.1.0"
)

func String() string {
	return BuildVersion + CurrentCommit
}
