package netutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHttpUrl(t *testing.T) {
	for _, valid := range []string{
		"http://localhost:8080/invoke",
		"https://program.example.com/invoke",
		"http://127.0.0.1:1234",
		"http://[::1]:1234/path",
	} {
		assert.NoError(t, ValidateHttpUrl(valid, false), valid)
	}

	for _, invalid := range []string{
		"",
		"program.example.com/invoke",
		"ftp://program.example.com",
		"http://",
		"http://bad_host!/invoke",
		"http://" + strings.Repeat("a", 254) + "/invoke",
	} {
		assert.Error(t, ValidateHttpUrl(invalid, false), invalid)
	}

	assert.NoError(t, ValidateHttpUrl("https://program.example.com", true))
	assert.Error(t, ValidateHttpUrl("http://program.example.com", true))
}

func TestGetAvailablePortForAddress(t *testing.T) {
	port, err := GetAvailablePortForAddress("localhost")
	assert.NoError(t, err)
	assert.Positive(t, port)
}
