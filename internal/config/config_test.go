package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	encodedKey := base64.StdEncoding.EncodeToString(key)

	tcases := []struct {
		name        string
		addr        string
		dsn         string
		secret      string
		expectedErr string
	}{
		{
			name:   "valid config",
			addr:   "localhost:8000",
			dsn:    "host=localhost user=postgres",
			secret: encodedKey,
		},
		{
			name:        "empty server address",
			addr:        "",
			dsn:         "host=localhost user=postgres",
			secret:      encodedKey,
			expectedErr: "server address cannot be empty",
		},
		{
			name:        "empty dsn",
			addr:        "localhost:8000",
			dsn:         "",
			secret:      encodedKey,
			expectedErr: "database DSN cannot be empty",
		},
		{
			name:        "empty signing secret",
			addr:        "localhost:8000",
			dsn:         "host=localhost user=postgres",
			secret:      "",
			expectedErr: "signing secret cannot be empty",
		},
		{
			name:        "invalid base64 signing secret",
			addr:        "localhost:8000",
			dsn:         "host=localhost user=postgres",
			secret:      "not-base64!!",
			expectedErr: "decode signing secret",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.addr, tc.dsn, tc.secret, []string{"http://localhost:3000"}, false)
			if tc.expectedErr != "" {
				assert.ErrorContains(t, err, tc.expectedErr)
				assert.Nil(t, cfg)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.addr, cfg.ServerAddr)
			assert.Equal(t, tc.dsn, cfg.DatabaseDSN)
			assert.Equal(t, key, cfg.SigningKey)
			assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
			assert.False(t, cfg.OwnerlessRooms)
		})
	}
}
