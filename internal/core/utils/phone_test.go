package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPhone(t *testing.T) {
	for _, p := range []string{"010-1234-5678", "01012345678", "02-123-4567"} {
		assert.True(t, ValidPhone(p), p)
	}
	for _, p := range []string{"", "010--1234", "1234", "010-1234-56789-1", "phone", "-0101234567"} {
		assert.False(t, ValidPhone(p), p)
	}
	assert.Equal(t, "01012345678", DigitsOnly("010-1234-5678"))
}

func TestCheckPort(t *testing.T) {
	assert.NoError(t, CheckPort(3000, true))
	assert.Error(t, CheckPort(80, true))
	assert.Error(t, CheckPort(50000, false))
}

func TestGetStringArray(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, GetStringArray(" a, ,b ,"))
	assert.Empty(t, GetStringArray(""))
}
