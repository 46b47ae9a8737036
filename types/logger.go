package types

// Logger defines the structured logging methods used by regionlb.
//
// The method set matches *zap.SugaredLogger, so a zap logger can be passed
// directly:
//
//	logger, _ := zap.NewProduction()
//	router, _ := regionlb.New(cfg, regionlb.WithLogger(logger.Sugar()))
//
// Implementations must be safe for concurrent use.
type Logger interface {
	// Debugw logs a message with alternating key/value pairs at debug level.
	Debugw(msg string, keysAndValues ...any)

	// Infow logs a message with alternating key/value pairs at info level.
	Infow(msg string, keysAndValues ...any)

	// Warnw logs a message with alternating key/value pairs at warn level.
	Warnw(msg string, keysAndValues ...any)

	// Errorw logs a message with alternating key/value pairs at error level.
	Errorw(msg string, keysAndValues ...any)
}
