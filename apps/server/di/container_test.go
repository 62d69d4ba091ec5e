package di

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	echoapp "github.com/trezcool/classroom/apps/server/echo"
	"github.com/trezcool/classroom/core"
)

func TestNew(t *testing.T) {
	c := New(dig.DryRun(true))

	require.NoError(t, c.Invoke(func(
		conf *core.Config,
		loggerParam DBLoggerParam,
		db core.DB,
		server echoapp.Server,
	) {
	}))
}
