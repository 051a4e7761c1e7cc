package config

import (
	"github.com/knadh/koanf/providers/confmap"

	"github.com/sir-photch/notesock/internal/idgen"
)

// defaultsProvider seeds koanf with the documented defaults before the
// config file, environment, and flag layers are applied on top.
func defaultsProvider() *confmap.Confmap {
	return confmap.Provider(map[string]interface{}{
		"sockdir":            DefaultSockDir,
		"mode":               uint32(DefaultMode),
		"host":               DefaultHost,
		"workers":            DefaultWorkers,
		"max-size-kib":       DefaultMaxSizeKiB,
		"timeout-ms":         DefaultTimeoutMS,
		"directory":          DefaultDirectory,
		"cleanup-after-sec":  DefaultCleanupAfterSec,
		"no-cleanup":         DefaultNoCleanup,
		"id-lower":           DefaultIDLower,
		"id-upper":           DefaultIDUpper,
		"talk-proxy":         DefaultTalkProxy,
		"monitor-schedule":   "0 * * * * *",
		"monitor-max-pregen": 0,
		"accept-rate":        float64(0),
		"max-pending-conns":  0,
	}, ".")
}

// decodeBase36Bound parses s as notesock's base-36 identifier alphabet,
// reusing idgen's codec so a bad --id-lower/--id-upper is rejected with
// the same rules the generator itself enforces at runtime.
func decodeBase36Bound(s string) (uint64, error) {
	return idgen.Decode(s)
}
