// Package version exposes build metadata injected at link time.
package version

// Version is the application version, set with
// -ldflags "-X github.com/ndewijer/fund-ledger/internal/version.Version=1.2.3".
var Version = "dev"
