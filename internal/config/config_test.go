package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("33122"))
	assert.Error(t, ValidatePort(""))
	assert.Error(t, ValidatePort("not-a-number"))
	assert.Error(t, ValidatePort("70000"))
}

func TestValidateHostAllowsEmptyForReceiver(t *testing.T) {
	assert.NoError(t, ValidateHost(""))
	assert.NoError(t, ValidateHost("127.0.0.1"))
	assert.NoError(t, ValidateHost("example.com"))
	assert.Error(t, ValidateHost("bad host!!"))
}

func TestValidateDropRate(t *testing.T) {
	assert.NoError(t, ValidateDropRate(""))
	assert.NoError(t, ValidateDropRate("0.3"))
	assert.Error(t, ValidateDropRate("1.5"))
	assert.Error(t, ValidateDropRate("nope"))
}

func TestValidateTimeout(t *testing.T) {
	assert.NoError(t, ValidateTimeout("500ms"))
	assert.Error(t, ValidateTimeout(""))
	assert.Error(t, ValidateTimeout("soon"))
}

func TestValidateRetries(t *testing.T) {
	assert.NoError(t, ValidateRetries("5"))
	assert.Error(t, ValidateRetries("-1"))
	assert.Error(t, ValidateRetries("101"))
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSenderSettings()
	assert.Equal(t, "127.0.0.1", s.Host)
	r := DefaultReceiverSettings()
	assert.Equal(t, ".", r.BaseDir)
}
