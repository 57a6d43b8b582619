package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLogMessage(t *testing.T) {
	assert.Equal(t, "menu.png level=ERROR forged", SanitizeLogMessage("menu.png\nlevel=ERROR forged"))
	assert.Equal(t, "ab", SanitizeLogMessage("a\x00b"))
	assert.Equal(t, "菜单.pdf", SanitizeLogMessage("菜单.pdf"))
}

func TestSanitizeLogName(t *testing.T) {
	long := strings.Repeat("x", 150)
	got := SanitizeLogName(long)
	assert.Equal(t, strings.Repeat("x", 100)+"...", got)
}
