package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceConfig(t *testing.T) {
	conf, err := ServiceConfig("bench", ":8420", "a1b2")
	require.NoError(t, err)
	assert.Equal(t, "bench", conf.Name)
	assert.Equal(t, ServiceType, conf.Type)
	assert.Equal(t, 8420, conf.Port)
	assert.Equal(t, map[string]string{"id": "a1b2"}, conf.Text)

	conf, err = ServiceConfig("", "127.0.0.1:80", "")
	require.NoError(t, err)
	assert.NotEmpty(t, conf.Name)
	assert.Nil(t, conf.Text)

	for _, addr := range []string{"8420", ":http", ":0", ":70000"} {
		_, err = ServiceConfig("x", addr, "")
		assert.Error(t, err, addr)
	}
}
