package global

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetGlobal(t *testing.T) {
	t.Helper()
	saved := Global
	t.Cleanup(func() { Global = saved })
}

func TestLoadDefaultsOnly(t *testing.T) {
	resetGlobal(t)

	require.NoError(t, Load(""))
	require.Equal(t, ":8080", Global.Server.Addr)
	require.Equal(t, "pchat", Global.Mongo.Database)
	require.Equal(t, 2*time.Hour, Global.JWTTTL())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	resetGlobal(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  node_id: 7
mongo:
  database: chat_test
jwt:
  ttl_minutes: 30
`), 0o600))

	require.NoError(t, Load(path))
	require.Equal(t, ":9000", Global.Server.Addr)
	require.Equal(t, int64(7), Global.Server.NodeID)
	require.Equal(t, "chat_test", Global.Mongo.Database)
	// 文件没写的键保持默认
	require.Equal(t, "mongodb://127.0.0.1:27017", Global.Mongo.URI)
	require.Equal(t, 30*time.Minute, Global.JWTTTL())
}

func TestEnvBeatsFile(t *testing.T) {
	resetGlobal(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o600))
	t.Setenv("PCHAT_ADDR", ":7000")
	t.Setenv("PCHAT_JWT_SECRET", "env-secret")

	require.NoError(t, Load(path))
	require.Equal(t, ":7000", Global.Server.Addr)
	require.Equal(t, []byte("env-secret"), JWTSecret())
}

func TestLoadMissingFile(t *testing.T) {
	resetGlobal(t)
	require.Error(t, Load(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	resetGlobal(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	require.Error(t, Load(path))
}
