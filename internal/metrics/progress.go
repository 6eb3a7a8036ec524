package metrics

import (
	"fmt"
	"sort"
	"time"

	"nback-go/internal/models"
)

// ChartStyle selects how a session's level and score become one chart value.
type ChartStyle string

const (
	StyleThresholdScaled ChartStyle = "N+10/3+4/3"
	StyleLevel           ChartStyle = "N"
	StylePercent         ChartStyle = "%"
	StyleLevelDotPercent ChartStyle = "N.%"
	StyleLevelPercent    ChartStyle = "N+2*%-1"
)

// ChartStyles lists the styles in display rotation order.
var ChartStyles = []ChartStyle{StyleThresholdScaled, StyleLevel, StylePercent, StyleLevelDotPercent, StyleLevelPercent}

// ParseChartStyle accepts a style name; empty selects the first style.
func ParseChartStyle(s string) (ChartStyle, error) {
	if s == "" {
		return ChartStyles[0], nil
	}
	for _, style := range ChartStyles {
		if string(style) == s {
			return style, nil
		}
	}
	return "", fmt.Errorf("unknown chart style %q", s)
}

// ChartPoint is the aggregate of one training day.
type ChartPoint struct {
	Day      time.Time `json:"day"`
	Mean     float64   `json:"mean"`
	Max      float64   `json:"max"`
	Sessions int       `json:"sessions"`
}

// TrainingDay returns midnight of the day t counts toward. Sessions before
// the rollover hour belong to the previous day.
func TrainingDay(t time.Time, rolloverHour int) time.Time {
	if t.Hour() < rolloverHour {
		t = t.AddDate(0, 0, -1)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DailyChart buckets non-manual sessions of mode by training day and
// returns the per-day mean and maximum in ascending day order.
func DailyChart(records []models.HistoryRecord, mode models.ModeID, style ChartStyle, rolloverHour, advance, fallback int) []ChartPoint {
	byDay := map[time.Time][]float64{}
	for _, r := range records {
		if r.Manual || r.Mode != mode {
			continue
		}
		day := TrainingDay(r.Timestamp, rolloverHour)
		byDay[day] = append(byDay[day], chartValue(style, r.Back, r.Percent, advance, fallback))
	}

	points := make([]ChartPoint, 0, len(byDay))
	for day, values := range byDay {
		p := ChartPoint{Day: day, Sessions: len(values), Max: values[0]}
		sum := 0.0
		for _, v := range values {
			sum += v
			p.Max = max(p.Max, v)
		}
		p.Mean = sum / float64(len(values))
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })
	return points
}

func chartValue(style ChartStyle, back, percent, advance, fallback int) float64 {
	n, pct := float64(back), 0.01*float64(percent)
	switch style {
	case StyleLevel:
		return n
	case StylePercent:
		return pct
	case StyleLevelDotPercent:
		return n + pct
	case StyleLevelPercent:
		return n - 1 + 2*pct
	}
	// Maps the fallback threshold to N and the advance threshold to N+1.
	if advance == fallback {
		return n
	}
	m := 1 / float64(advance-fallback)
	return n - m*float64(fallback) + m*float64(percent)
}

// Summary counts recent training volume.
type Summary struct {
	SessionsToday   int           `json:"sessionsToday"`
	TimeToday       time.Duration `json:"timeToday"`
	SessionsLast24h int           `json:"sessionsLast24h"`
	TimeLast24h     time.Duration `json:"timeLast24h"`
}

// Summarize counts sessions and nominal time in the current training day
// and in the 24 hours before now.
func Summarize(records []models.HistoryRecord, now time.Time, rolloverHour int) Summary {
	var s Summary
	today := TrainingDay(now, rolloverHour)
	for _, r := range records {
		ts := r.Timestamp.In(now.Location())
		if TrainingDay(ts, rolloverHour).Equal(today) {
			s.SessionsToday++
			s.TimeToday += r.Duration()
		}
		if !ts.After(now) && now.Sub(ts) < 24*time.Hour {
			s.SessionsLast24h++
			s.TimeLast24h += r.Duration()
		}
	}
	return s
}

// Today returns the records whose training day is the one containing now.
func Today(records []models.HistoryRecord, now time.Time, rolloverHour int) []models.HistoryRecord {
	today := TrainingDay(now, rolloverHour)
	var out []models.HistoryRecord
	for _, r := range records {
		if TrainingDay(r.Timestamp.In(now.Location()), rolloverHour).Equal(today) {
			out = append(out, r)
		}
	}
	return out
}

// Average is the mean N-back level of the last window sessions of mode.
func Average(records []models.HistoryRecord, mode models.ModeID, window int) float64 {
	var backs []int
	for _, r := range records {
		if r.Mode == mode {
			backs = append(backs, r.Back)
		}
	}
	if len(backs) > window {
		backs = backs[len(backs)-window:]
	}
	if len(backs) == 0 {
		return 0
	}
	sum := 0
	for _, b := range backs {
		sum += b
	}
	return float64(sum) / float64(len(backs))
}

// CategoryAverages is the mean per-modality percent over the last window
// non-manual sessions of mode, for each modality the mode trains.
func CategoryAverages(records []models.HistoryRecord, mode models.ModeID, window int) map[models.Modality]float64 {
	desc, err := models.LookupMode(mode)
	if err != nil {
		return nil
	}
	var sessions []models.HistoryRecord
	for _, r := range records {
		if !r.Manual && r.Mode == mode {
			sessions = append(sessions, r)
		}
	}
	if len(sessions) > window {
		sessions = sessions[len(sessions)-window:]
	}

	out := make(map[models.Modality]float64, len(desc.Modalities))
	for _, m := range desc.Modalities {
		if len(sessions) == 0 {
			out[m] = 0
			continue
		}
		sum := 0
		for _, r := range sessions {
			sum += r.CategoryPercents[m]
		}
		out[m] = float64(sum) / float64(len(sessions))
	}
	return out
}
