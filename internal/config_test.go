package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal(8080, config.HTTPPort)
	req.Equal(100, config.LimitMessages)
	req.Equal(24*time.Hour, config.AuthTokenDuration)
	req.Equal([]string{"*"}, config.Origins())
}

func TestLoadConfig_ShortSecretRejected(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "short")

	_, err := LoadConfig()

	req.Error(err)
}

func TestLoadConfig_AdminPasswordRequiredWithUsername(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ADMIN_USERNAME", "root")

	_, err := LoadConfig()

	req.Error(err)
}

func TestConfig_Origins(t *testing.T) {
	req := require.New(t)
	config := Config{AllowedOrigins: " https://a.example , ,https://b.example"}

	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("##")
	req.Error(err)
}
