package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
)

// 数据库未启用：仓库是空操作，不应报错或越界
func TestRepoDisabledNoop(t *testing.T) {
	r, err := Open(cfgpkg.DatabaseConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	ctx := context.Background()
	r.RecordFinished(ctx, "s-1", 7)
	r.RecordCommand(ctx, "s-1", "track", 7)

	plays, err := r.RecentPlays(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, plays)

	assert.NoError(t, r.Close())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "play_records", PlayRecord{}.TableName())
	assert.Equal(t, "command_logs", CommandLog{}.TableName())
}
