package session

import (
	"math"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
)

// Summarize folds a complete outcome log into statistics. Every outcome
// other than a reply counts as lost.
func Summarize(outcomes []probe.Outcome) Statistics {
	stats := Statistics{
		Sent: len(outcomes),
		RTTs: make([]float64, 0, len(outcomes)),
	}

	for _, out := range outcomes {
		switch out.Kind {
		case probe.KindReply:
			stats.Received++
			stats.RTTs = append(stats.RTTs, roundMillis(out.RTTMillis()))
		case probe.KindTimeout:
			stats.Timeouts++
		case probe.KindUnreachable:
			stats.Unreachable++
			if stats.UnreachableCodes == nil {
				stats.UnreachableCodes = make(map[int]int)
			}
			stats.UnreachableCodes[out.Code]++
		case probe.KindReset:
			stats.Resets++
		case probe.KindMalformed:
			stats.Malformed++
		}
	}

	stats.Lost = stats.Sent - stats.Received
	stats.LossPercent = calculateLossPercent(stats.Sent, stats.Received)
	stats.RTT = calculateRTTStats(stats.RTTs)

	return stats
}

// calculateRTTStats calculates RTT statistics over rtts in send order. It
// returns nil for an empty slice so that no min, max or mean is reported
// without replies. Jitter is the mean absolute difference between
// consecutive RTTs.
func calculateRTTStats(rtts []float64) *RTTStats {
	if len(rtts) == 0 {
		return nil
	}

	s := &RTTStats{Min: rtts[0], Max: rtts[0]}
	sum, deltas := 0.0, 0.0

	for i, rtt := range rtts {
		sum += rtt
		if i > 0 {
			deltas += math.Abs(rtt - rtts[i-1])
		}
		if rtt < s.Min {
			s.Min = rtt
		}
		if rtt > s.Max {
			s.Max = rtt
		}
	}

	s.Avg = roundMillis(sum / float64(len(rtts)))
	if len(rtts) > 1 {
		s.Jitter = roundMillis(deltas / float64(len(rtts)-1))
	}

	return s
}

// calculateLossPercent calculates packet loss percentage.
func calculateLossPercent(sent, received int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(sent-received) / float64(sent) * 100
}

// roundMillis rounds to microsecond precision.
func roundMillis(ms float64) float64 {
	return math.Round(ms*1000) / 1000
}
