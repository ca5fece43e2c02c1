package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Context_LogHelpers_NoopWithoutRing(t *testing.T) {
	ctx := NewContext("n1", nil)
	ctx.LoggingOn = true
	require.NotPanics(t, func() {
		ctx.LogInfo("hello")
		ctx.LogInfof("hello %d", 1)
	})
}

func Test_Context_LogHelpers_NoopWhenLoggingOff(t *testing.T) {
	ctx := NewContext("n1", nil)
	ctx.LoggingOn = false
	require.NotPanics(t, func() {
		ctx.LogError("should be dropped")
	})
}
