package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAlertManager_DedupSuppressesWithinWindow(t *testing.T) {
	am := NewAlertManager(5 * time.Second)
	now := time.Now()
	alert := Alert{Type: "SPOOFING", Severity: SeverityCritical, Message: "L1 BID cancel-without-move detected"}

	first := am.Process(now, []Alert{alert})
	require.Len(t, first, 1)

	second := am.Process(now.Add(time.Second), []Alert{alert})
	require.Empty(t, second, "duplicate within dedup window must never appear in the output stream")

	third := am.Process(now.Add(6*time.Second), []Alert{alert})
	require.Len(t, third, 1, "same alert outside the dedup window is a new occurrence")
}

func TestAlertManager_EscalatesAfterThreshold(t *testing.T) {
	am := NewAlertManager(time.Millisecond) // window shorter than our spacing so every alert is distinct
	base := time.Now()

	var lastOut []Alert
	for i := 0; i < 3; i++ {
		msg := Alert{Type: "SPOOFING", Severity: SeverityCritical, Message: "distinct-" + string(rune('a'+i))}
		lastOut = am.Process(base.Add(time.Duration(i)*10*time.Millisecond), []Alert{msg})
	}
	require.Len(t, lastOut, 1)
	require.Contains(t, lastOut[0].Message, "ESCALATED")
}

func TestAlertManager_StatsTracksPerTypeCounts(t *testing.T) {
	am := NewAlertManager(0)
	now := time.Now()
	am.Process(now, []Alert{{Type: "LAYERING", Message: "a"}})
	am.Process(now.Add(time.Second), []Alert{{Type: "LAYERING", Message: "b"}})
	stats := am.Stats()
	require.Equal(t, 2, stats["LAYERING"])
}
