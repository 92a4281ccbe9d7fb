package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// debugModules is the allowlist of dot-separated logger names (as set by
// (*zap.Logger).Named) permitted to emit Debug-level entries. An empty map
// means no module filtering is applied: Debug entries pass through
// whenever the core's own level permits them. This lets `--debug-modules
// asn1,tlswire` narrow a noisy debug run to the one subsystem under
// investigation, the way a busy proxy's integration code scopes debug
// output per protocol.
var (
	debugModulesMu sync.RWMutex
	debugModules   map[string]bool
)

// SetDebugModules installs the module allowlist. A nil or empty map clears
// filtering entirely.
func SetDebugModules(modules map[string]bool) {
	debugModulesMu.Lock()
	defer debugModulesMu.Unlock()
	debugModules = modules
}

func moduleEnabled(name string) bool {
	debugModulesMu.RLock()
	mods := debugModules
	debugModulesMu.RUnlock()

	if len(mods) == 0 {
		return true
	}
	if name == "" {
		return false
	}

	// Walk from the full dotted name up to its ancestors: "proxy.http"
	// checks "proxy.http" then "proxy". A disabled exact entry
	// short-circuits before falling back to an enabled ancestor.
	parts := strings.Split(name, ".")
	for i := len(parts); i > 0; i-- {
		candidate := strings.Join(parts[:i], ".")
		if enabled, ok := mods[candidate]; ok {
			return enabled
		}
	}
	return false
}

// moduleFilterCore wraps a zapcore.Core so Debug entries are dropped
// unless their logger name passes moduleEnabled.
type moduleFilterCore struct {
	zapcore.Core
	name string
}

func (c moduleFilterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level == zapcore.DebugLevel && !moduleEnabled(ent.LoggerName) {
		return ce
	}
	if !c.Core.Enabled(ent.Level) {
		return ce
	}
	return ce.AddCore(ent, c)
}

func (c moduleFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return moduleFilterCore{Core: c.Core.With(fields), name: c.name}
}

func withModuleFilter(logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return moduleFilterCore{Core: core}
	}))
}
