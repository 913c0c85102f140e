package logging

import "log/slog"

// SetupUIMode initializes logging for a session driven by an external
// terminal UI. The UI owns the terminal's paint region, so logs must never
// land on stderr - only the rotating file sink is used, at debug level for
// complete diagnostics of a streaming task run.
func SetupUIMode() (func(), error) {
	cfg := Config{
		Level:         "debug",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("ui-mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}
