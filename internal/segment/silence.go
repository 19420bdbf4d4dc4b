package segment

import (
	"youtube2text/internal/pcm"

	"github.com/go-audio/audio"
)

// Range is a [StartMS, EndMS) span of the source audio.
type Range struct {
	StartMS int
	EndMS   int
}

// DetectSilence returns spans at least minSilenceMS long whose RMS stays at or
// below threshDB (relative to full scale). Windows are probed every seekStepMS.
func DetectSilence(buf *audio.IntBuffer, minSilenceMS int, threshDB float64, seekStepMS int) []Range {
	segLen := pcm.DurationMS(buf)
	if minSilenceMS <= 0 || segLen < minSilenceMS {
		return nil
	}
	if seekStepMS <= 0 {
		seekStepMS = 1
	}
	thresh := pcm.DBToRatio(threshDB) * pcm.MaxAmplitude(buf)
	energy := pcm.NewEnergy(buf)

	lastStart := segLen - minSilenceMS
	var starts []int
	probe := func(i int) {
		if energy.RMS(i, i+minSilenceMS) <= thresh {
			starts = append(starts, i)
		}
	}
	for i := 0; i <= lastStart; i += seekStepMS {
		probe(i)
	}
	if lastStart%seekStepMS != 0 {
		probe(lastStart)
	}
	if len(starts) == 0 {
		return nil
	}

	var ranges []Range
	prev := starts[0]
	rangeStart := prev
	for _, s := range starts[1:] {
		continuous := s == prev+seekStepMS
		hasGap := s > prev+minSilenceMS
		if !continuous && hasGap {
			ranges = append(ranges, Range{StartMS: rangeStart, EndMS: prev + minSilenceMS})
			rangeStart = s
		}
		prev = s
	}
	return append(ranges, Range{StartMS: rangeStart, EndMS: prev + minSilenceMS})
}

// DetectNonsilent is the complement of DetectSilence. Audio without any
// silence is one range covering the clip; audio that is silent throughout
// yields no ranges.
func DetectNonsilent(buf *audio.IntBuffer, minSilenceMS int, threshDB float64, seekStepMS int) []Range {
	segLen := pcm.DurationMS(buf)
	silent := DetectSilence(buf, minSilenceMS, threshDB, seekStepMS)
	if len(silent) == 0 {
		if segLen == 0 {
			return nil
		}
		return []Range{{StartMS: 0, EndMS: segLen}}
	}
	if silent[0].StartMS == 0 && silent[0].EndMS == segLen {
		return nil
	}

	var out []Range
	prevEnd := 0
	for _, r := range silent {
		out = append(out, Range{StartMS: prevEnd, EndMS: r.StartMS})
		prevEnd = r.EndMS
	}
	if prevEnd != segLen {
		out = append(out, Range{StartMS: prevEnd, EndMS: segLen})
	}
	if out[0].StartMS == 0 && out[0].EndMS == 0 {
		out = out[1:]
	}
	return out
}

// SplitRanges computes chunk spans: non-silent ranges padded by keepSilenceMS on
// both sides, with overlapping padding split at the midpoint and the result
// clamped to the clip.
func SplitRanges(buf *audio.IntBuffer, opts Options) []Range {
	thresh := pcm.DBFS(buf) - opts.SilenceOffsetDB
	nonsilent := DetectNonsilent(buf, opts.MinSilenceMS, thresh, opts.SeekStepMS)

	ranges := make([]Range, len(nonsilent))
	for i, r := range nonsilent {
		ranges[i] = Range{StartMS: r.StartMS - opts.KeepSilenceMS, EndMS: r.EndMS + opts.KeepSilenceMS}
	}
	for i := 0; i+1 < len(ranges); i++ {
		if ranges[i+1].StartMS < ranges[i].EndMS {
			mid := (ranges[i].EndMS + ranges[i+1].StartMS) / 2
			ranges[i].EndMS = mid
			ranges[i+1].StartMS = mid
		}
	}
	segLen := pcm.DurationMS(buf)
	for i := range ranges {
		ranges[i].StartMS = max(ranges[i].StartMS, 0)
		ranges[i].EndMS = min(ranges[i].EndMS, segLen)
	}
	return ranges
}
