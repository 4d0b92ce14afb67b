package version

import "strings"

// Set at build time with -ldflags "-X garmentsapi/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = ""
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime,omitempty"`
	StockMode string `json:"stockMode,omitempty"`
	Backend   string `json:"backend,omitempty"`
}

// Current reports build metadata together with the runtime store settings.
func Current(backend, stockMode string) Info {
	out := Info{
		Version:   strings.TrimSpace(Version),
		Commit:    strings.TrimSpace(Commit),
		BuildTime: strings.TrimSpace(BuildTime),
		StockMode: stockMode,
		Backend:   backend,
	}
	if out.Version == "" {
		out.Version = "dev"
	}
	if out.Commit == "" {
		out.Commit = "unknown"
	}
	return out
}
