package config

import "github.com/spf13/pflag"

// RegisterFlags declares every supported flag on fs, short and long
// forms included, with the documented defaults. Load reads fs back out
// after parsing.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("sockdir", "s", DefaultSockDir, "directory holding the unix socket")
	fs.Uint32P("mode", "m", DefaultMode, "POSIX permission bits for the socket file")
	fs.StringP("host", "H", DefaultHost, "URL prefix used in the success reply")
	fs.IntP("workers", "w", DefaultWorkers, "number of paste workers")
	fs.IntP("max-size-kib", "M", DefaultMaxSizeKiB, "maximum payload size in KiB")
	fs.IntP("timeout-ms", "t", DefaultTimeoutMS, "per-connection read and write timeout, in milliseconds")
	fs.StringP("directory", "d", DefaultDirectory, "paste storage root")
	fs.IntP("cleanup-after-sec", "c", DefaultCleanupAfterSec, "seconds before a paste expires")
	fs.Bool("no-cleanup", DefaultNoCleanup, "retain pastes across restart instead of purging them")
	fs.StringP("id-lower", "l", DefaultIDLower, "base-36 low bound (inclusive)")
	fs.StringP("id-upper", "u", DefaultIDUpper, "base-36 high bound (exclusive)")
	fs.Bool("talk-proxy", DefaultTalkProxy, "expect a PROXY-protocol prefix on each connection")

	fs.String("monitor-schedule", "0 * * * * *", "cron schedule for the capacity monitor")
	fs.Int("monitor-max-pregen", 0, "prefetch buffer cap of the partition generator used for small id ranges (0 = unbounded)")

	fs.Float64("accept-rate", 0, "maximum accepted connections per second (0 = unlimited)")
	fs.Int("max-pending-conns", 0, "maximum accepted-but-undrained connections (0 = unlimited)")

	fs.String("telegram-bot-token", "", "telegram bot token for operator alerts (disabled when empty)")
	fs.Int64("telegram-chat-id", 0, "telegram chat id to receive operator alerts")

	fs.String("config", "", "optional JSON config file layered beneath flags and environment")
	fs.CountP("verbose", "v", "increase log verbosity (repeatable)")
}
