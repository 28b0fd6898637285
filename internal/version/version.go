package version

// Set at build time with -ldflags "-X oshaberi/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
)

func String() string {
	if Commit == "none" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
