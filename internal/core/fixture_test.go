package core_test

import (
	"testing"
	"time"

	"accounting-reports/internal/core"

	"github.com/stretchr/testify/require"
)

var fixtureNow = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T) *core.Snapshot {
	t.Helper()
	snap, err := core.LoadSnapshotFile("testdata/snapshot.json")
	require.NoError(t, err)
	return snap
}
