package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestModuleFilter(t *testing.T) {
	tests := []struct {
		name             string
		modules          map[string]bool
		logOperations    func(logger *zap.Logger)
		expectedOutput   []string
		unexpectedOutput []string
	}{
		{
			name:    "enable single module",
			modules: map[string]bool{"asn1": true},
			logOperations: func(logger *zap.Logger) {
				logger.Named("asn1").Debug("parsing SEQUENCE")
				logger.Named("tlswire").Debug("decoding ServerHello")
			},
			expectedOutput:   []string{"parsing SEQUENCE"},
			unexpectedOutput: []string{"decoding ServerHello"},
		},
		{
			name:    "nested module enabled via parent",
			modules: map[string]bool{"scanner": true},
			logOperations: func(logger *zap.Logger) {
				logger.Named("scanner.ciphers").Debug("probing cipher suite")
			},
			expectedOutput: []string{"probing cipher suite"},
		},
		{
			name:    "nested module disabled explicitly overrides parent",
			modules: map[string]bool{"scanner": true, "scanner.ciphers": false},
			logOperations: func(logger *zap.Logger) {
				logger.Named("scanner.ciphers").Debug("probing cipher suite")
				logger.Named("scanner.honororder").Debug("honor order probe")
			},
			expectedOutput:   []string{"honor order probe"},
			unexpectedOutput: []string{"probing cipher suite"},
		},
		{
			name:    "empty allowlist applies no module filtering",
			modules: nil,
			logOperations: func(logger *zap.Logger) {
				logger.Named("asn1").Debug("visible when unfiltered")
			},
			expectedOutput: []string{"visible when unfiltered"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			SetDebugModules(tc.modules)
			defer SetDebugModules(nil)

			var buf bytes.Buffer
			logger := NewWithWriter(&buf, zap.DebugLevel)
			tc.logOperations(logger)
			out := buf.String()

			for _, want := range tc.expectedOutput {
				assert.True(t, strings.Contains(out, want), "expected %q in output", want)
			}
			for _, notWant := range tc.unexpectedOutput {
				assert.False(t, strings.Contains(out, notWant), "did not expect %q in output", notWant)
			}
		})
	}
}
