package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-queue-backend/internal/queue"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:queue.db", cfg.Database.DSN)
	assert.Equal(t, 2, cfg.WorkerPool.Size)
	assert.Equal(t, 100*time.Millisecond, cfg.WorkerPool.RetryBackoff)
	assert.Equal(t, 30*time.Second, cfg.WorkerPool.MaxRetryDelay)
	assert.Equal(t, 3*time.Second, cfg.WorkerPool.DrainTimeout)
	assert.Equal(t, 3, cfg.Queue.NumberWidth)
	assert.Equal(t, string(queue.LogoutRefuse), cfg.Queue.LogoutPolicy)
	assert.Len(t, cfg.Categories, 3)
	assert.Equal(t, "queue", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 30*time.Second, cfg.Checkpoint.Interval)
	assert.False(t, cfg.Push.Enabled())
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)

	sc := cfg.SchedulerConfig()
	assert.Equal(t, 3, sc.NumberWidth)
	assert.Equal(t, queue.Estimator{LowPerTicket: 5, HighPerTicket: 10}, sc.Estimator)
	assert.Equal(t, queue.LogoutRefuse, sc.LogoutPolicy)

	cats := cfg.QueueCategories()
	require.Len(t, cats, 3)
	assert.Equal(t, queue.ClassPriority, cats[2].PriorityClass)
}

func TestLoad_Categories(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
queue:
  logout_policy: requeue
categories:
  - {id: geral, name: Geral, priority_class: geral}
  - {id: pref, name: Preferencial, priority_class: preferencial}
`))
	require.NoError(t, err)
	assert.Equal(t, "requeue", cfg.Queue.LogoutPolicy)
	require.Len(t, cfg.Categories, 2)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":        "serverr:\n  port: 1\n",
		"bad driver":           "database:\n  driver: mysql\n",
		"postgres without dsn": "database:\n  driver: postgres\n",
		"bad policy":           "queue:\n  logout_policy: abandon\n",
		"inverted estimate":    "queue:\n  estimate_low_minutes: 9\n  estimate_high_minutes: 3\n",
		"duplicate category":   "categories:\n  - {id: a, name: A, priority_class: general}\n  - {id: a, name: B, priority_class: general}\n",
		"unknown class":        "categories:\n  - {id: a, name: A, priority_class: vip}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.RecentCalls)
}
