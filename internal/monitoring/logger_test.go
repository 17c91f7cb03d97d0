package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("magcal: instance %d complete", 1)
	assert.Equal(t, []string{"magcal: instance 1 complete"}, got)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted %s", "message") })
	assert.Len(t, got, 1)
}

func TestLogfDefault(t *testing.T) {
	assert.NotNil(t, Logf)
}
