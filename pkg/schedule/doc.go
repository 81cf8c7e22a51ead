// Package schedule dispatches registered handlers on recurring schedules.
//
// This package includes:
//   - Scheduler, a cron runner that dispatches handlers by name
//   - Every() for fixed-interval schedules
//   - Daily() for daily schedules at a specific time
//   - Weekly() for weekly schedules on a specific day and time
//   - Cron() for cron expression-based schedules
//
// Entries can be added from a cron spec string ("*/5 * * * *", "@hourly",
// "@every 30s") or from any Schedule value.
package schedule
