/*
Package log provides Scribe's internal diagnostic channel using zerolog.

This is NOT the event pipeline. Application log events flow through the
scribe engine to file sinks; this package is where the pipeline itself
reports its own problems (a sink that cannot write, a rotation that
failed, a panic recovered inside a wrapper). Keeping the two separate
guarantees that a broken pipeline can always say so on stderr without
recursing into itself.

# Core Components

Global Logger:
  - Package-level zerolog.Logger, stderr by default
  - Reconfigured via log.Init() (level, JSON or console format, writer)
  - Safe for concurrent use

Fault Reporting:
  - Fault(component, err, msg) for instrumentation-internal failures
  - Rate limited (10 reports burst, 1/s sustained) via golang.org/x/time
  - Overflow is discarded; a dying disk must not flood stderr

Component Loggers:
  - WithComponent("rotator") returns a child logger tagged with the
    component name

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	rotLog := log.WithComponent("rotator")
	rotLog.Info().Str("file", path).Msg("compressed rotated file")

	if err := s.Write(ev); err != nil {
		log.Fault("sink", err, "write failed")
	}
*/
package log
