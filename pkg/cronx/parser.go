package cronx

import "github.com/robfig/cron/v3"

// StandardParser returns the application's standard cron expression
// parser: a 6-field form with a leading seconds field, not the bare
// 5-field cron standard.
//
// Field order: [second] [minute] [hour] [day of month] [month] [day of week]
// Descriptors (@daily, @hourly, @every <duration>, ...) are also accepted.
func StandardParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}
