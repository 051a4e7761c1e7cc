package log

// NewProductionConfig returns log options tuned for a running daemon:
// file-centric, critical errors isolated, no console noise.
func NewProductionConfig(appName string) Options {
	return Options{
		Name:              appName,
		MaxAge:            30,
		EnableCriticalLog: true,
		EnableVerboseLog:  true,
		EnableConsoleLog:  false,
		ReportCaller:      true,
		CallerPathPrefix:  "github.com/sir-photch/notesock",
	}
}

// NewDevelopmentConfig returns log options tuned for local runs: everything
// goes to the terminal, nothing is split into separate files.
func NewDevelopmentConfig(appName string) Options {
	return Options{
		Name:              appName,
		MaxAge:            1,
		EnableCriticalLog: false,
		EnableVerboseLog:  false,
		EnableConsoleLog:  true,
		ReportCaller:      true,
		CallerPathPrefix:  "github.com/sir-photch/notesock",
	}
}
