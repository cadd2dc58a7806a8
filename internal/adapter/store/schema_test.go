package store

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadMsPreservesChronologicalOrder(t *testing.T) {
	stamps := []int64{0, 1, 999, 1_000, 1_717_171_717_171, 9_999_999_999_999}
	keys := make([]string, len(stamps))
	for i, ms := range stamps {
		keys[i] = PadMs(ms)
		assert.Len(t, keys[i], 13, "ms=%d", ms)
	}
	assert.True(t, sort.StringsAreSorted(keys), "lexicographic order must match numeric order: %v", keys)
}

func TestPadMsRoundTrip(t *testing.T) {
	for _, ms := range []int64{0, 7, 1_717_171_717_171} {
		got, err := ParseMs(PadMs(ms))
		require.NoError(t, err)
		assert.Equal(t, ms, got)
	}
}

func TestCheckSKSplit(t *testing.T) {
	sk := CheckSK(1_717_171_717_171, "ap-southeast-2")
	ms, region, err := SplitCheckSK(sk)
	require.NoError(t, err)
	assert.Equal(t, int64(1_717_171_717_171), ms)
	assert.Equal(t, "ap-southeast-2", region)

	_, _, err = SplitCheckSK("noseparator")
	assert.Error(t, err)
}

func TestMonitorIDExtraction(t *testing.T) {
	assert.Equal(t, "api-prod", MonitorIDFromStatePK(StatePK("api-prod")))
	assert.Empty(t, MonitorIDFromStatePK(GlobalStatePK))
	assert.Empty(t, MonitorIDFromStatePK("CHECK#api-prod"))
	assert.Equal(t, "api-prod", MonitorIDFromIncidentPK(IncidentPK("api-prod")))
}
