package options

import "go.uber.org/zap/zapcore"

// FilterFunc decides whether an entry is written.
type FilterFunc func(zapcore.Entry) bool

// MinLevel returns a FilterFunc passing entries of the given level and above.
// The console uses it to keep command output readable.
func MinLevel(lvl zapcore.Level) FilterFunc {
	return func(e zapcore.Entry) bool {
		return e.Level >= lvl
	}
}

// filteringCore wraps a zapcore.Core dropping entries rejected by the filter.
// Child cores created with With stay filtered.
type filteringCore struct {
	zapcore.Core
	filter FilterFunc
}

// NewFilteringCore wraps next so that only entries accepted by filter reach it.
func NewFilteringCore(next zapcore.Core, filter FilterFunc) zapcore.Core {
	return &filteringCore{Core: next, filter: filter}
}

func (c *filteringCore) With(fields []zapcore.Field) zapcore.Core {
	return &filteringCore{Core: c.Core.With(fields), filter: c.filter}
}

func (c *filteringCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.filter(e) {
		return ce
	}
	return c.Core.Check(e, ce)
}
