/*
Package log provides structured logging for chainkv using zerolog.

The global Logger is initialized once via Init and is safe for
concurrent use from every package. Component loggers add fields without
repeating them at every call site:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	storeLog := log.WithAlias("sessions")
	storeLog.Info().Msg("entity store opened")

	bucketLog := log.WithBucket(hash)
	bucketLog.Debug().Int("len", chain.Len()).Msg("bucket compacted")

Console output (JSONOutput: false) is the default: it is what the zero
Config and cachectl without --log-json produce. Set JSONOutput for
logs that get shipped to log aggregation.
*/
package log
