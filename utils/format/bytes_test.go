package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{"bytes", 0, "0 B"},
		{"bytes small", 512, "512 B"},
		{"kilobytes", 2048, "2.00 KB"},
		{"menu pdf limit", 10 * 1048576, "10.00 MB"},
		{"mixed", 1105197056, "1.03 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HumanReadableSize(tt.bytes))
		})
	}
}

func TestMegabytesToBytes(t *testing.T) {
	assert.Equal(t, int64(5*1024*1024), MegabytesToBytes(5))
	assert.Equal(t, int64(0), MegabytesToBytes(0))
	assert.Equal(t, int64(0), MegabytesToBytes(-3))
}
