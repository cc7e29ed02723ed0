package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertStageRan checks captured log output for the info line the pipeline
// emits when it enters a stage.
func AssertStageRan(t *testing.T, logOutput, stage string) {
	t.Helper()

	expected := fmt.Sprintf("stage=%s", stage)
	require.True(t,
		strings.Contains(logOutput, expected),
		"expected log output for stage '%s' was not found in logs", stage,
	)
}
