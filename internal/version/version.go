package version

import "fmt"

// Заполняются при сборке:
//
//	go build -ldflags "-X .../internal/version.version=v1.2.0 -X .../internal/version.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки repairhub для health-ответа.
func GetVersion() string { return version }

// GetCommit возвращает коммит, из которого собран бинарник.
func GetCommit() string { return commit }

// String собирает строку сборки для стартового лога.
func String() string {
	return fmt.Sprintf("repairhub version=%s commit=%s date=%s", version, commit, date)
}
