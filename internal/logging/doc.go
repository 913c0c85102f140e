// Package logging provides file-based logging with rotation for the
// tarang engine. Logs are written to ~/.tarang/logs/ at info level and
// mirrored to stderr; debug mode lowers the level to debug for
// troubleshooting indexing runs and streaming tasks.
//
// UI mode writes to the log file only, so a driving terminal UI's paint
// region is left undisturbed.
package logging
