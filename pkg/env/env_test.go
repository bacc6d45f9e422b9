package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("STREETMED_LOG_FORMAT", "")
	t.Setenv("LOG_FORMAT", " console ")
	assert.Equal(t, "console", First("json", "STREETMED_LOG_FORMAT", "LOG_FORMAT"))

	t.Setenv("STREETMED_LOG_FORMAT", "json")
	assert.Equal(t, "json", First("console", "STREETMED_LOG_FORMAT", "LOG_FORMAT"))
}

func TestFirstFallsBack(t *testing.T) {
	t.Setenv("STREETMED_UNSET_FOR_TEST", "   ")
	assert.Equal(t, "fallback", First("fallback", "STREETMED_UNSET_FOR_TEST"))
	assert.Equal(t, "fallback", First("fallback"))
}
