package handlers

import (
	"net/http"
	"strconv"
	"time"

	"nback-go/internal/config"
	"nback-go/internal/metrics"
	"nback-go/internal/models"
	"nback-go/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
)

// averageWindow is how many recent sessions the level averages span.
const averageWindow = 20

type HistoryHandler struct {
	log    *zap.Logger
	runner *services.Runner
	now    func() time.Time
}

func NewHistoryHandler(log *zap.Logger, runner *services.Runner) *HistoryHandler {
	return &HistoryHandler{log: log, runner: runner, now: time.Now}
}

type historyEntry struct {
	Timestamp     time.Time               `json:"timestamp"`
	Label         string                  `json:"label"`
	Mode          models.ModeID           `json:"mode"`
	Back          int                     `json:"back"`
	Percent       int                     `json:"percent"`
	Manual        bool                    `json:"manual"`
	SessionNumber int                     `json:"sessionNumber"`
	TotalTrials   int                     `json:"totalTrials"`
	Duration      float64                 `json:"durationSeconds"`
	Categories    map[models.Modality]int `json:"categories"`
}

func entryOf(r models.HistoryRecord) historyEntry {
	e := historyEntry{
		Timestamp:     r.Timestamp,
		Label:         r.ShortName,
		Mode:          r.Mode,
		Back:          r.Back,
		Percent:       r.Percent,
		Manual:        r.Manual,
		SessionNumber: r.SessionNumber,
		TotalTrials:   r.TotalTrials,
		Duration:      r.DurationSeconds,
		Categories:    map[models.Modality]int{},
	}
	if desc, err := models.LookupMode(r.Mode); err == nil {
		for _, m := range desc.Modalities {
			e.Categories[m] = r.CategoryPercents[m]
		}
	}
	return e
}

// History returns the active user's sessions with today's totals and
// recent averages for the configured mode.
func (h *HistoryHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	user, records, err := h.runner.History(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	cfg, err := h.runner.Config(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, entryOf(r))
	}
	mode := models.ModeID(cfg.Game.Mode)
	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"sessions":   entries,
		"summary":    metrics.Summarize(records, h.now(), cfg.Game.RolloverHour),
		"average":    metrics.Average(records, mode, averageWindow),
		"categories": metrics.CategoryAverages(records, mode, averageWindow),
	})
}

// Chart renders the daily progress of one mode. format=html returns a
// standalone page, anything else the chart options as JSON.
func (h *HistoryHandler) Chart(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, err := h.runner.Config(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	mode := models.ModeID(cfg.Game.Mode)
	if raw := c.Query("mode"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be a number"})
			return
		}
		mode = models.ModeID(n)
	}
	desc, err := models.LookupMode(mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	style, err := metrics.ParseChartStyle(c.Query("style"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, records, err := h.runner.History(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	points := dailyPoints(cfg, records, mode, style)
	chart := generateProgressChart(points, user, desc.LongName, style)

	if c.Query("format") == "html" {
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := chart.Render(c.Writer); err != nil {
			h.log.Error("Failed to render chart", zap.Error(err))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points, "options": chart.JSON()})
}

func dailyPoints(cfg *config.Config, records []models.HistoryRecord, mode models.ModeID, style metrics.ChartStyle) []metrics.ChartPoint {
	return metrics.DailyChart(records, mode, style, cfg.Game.RolloverHour, cfg.AdvanceThreshold(), cfg.FallbackThreshold())
}

func generateProgressChart(points []metrics.ChartPoint, user, modeName string, style metrics.ChartStyle) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "N-back progress"}),
		charts.WithTitleOpts(opts.Title{
			Title:    modeName + " progress",
			Subtitle: user + ", " + string(style),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time"}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Name:  string(style),
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	means := make([]opts.LineData, 0, len(points))
	maxes := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		day := p.Day.Format(time.DateOnly)
		means = append(means, opts.LineData{Value: []interface{}{day, p.Mean}})
		maxes = append(maxes, opts.LineData{Value: []interface{}{day, p.Max}})
	}

	line.AddSeries("Daily mean", means).
		AddSeries("Daily max", maxes).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}

type modeInfo struct {
	ID         models.ModeID     `json:"id"`
	ShortName  string            `json:"shortName"`
	LongName   string            `json:"longName"`
	Modalities []models.Modality `json:"modalities"`
	Crab       bool              `json:"crab,omitempty"`
	Multi      int               `json:"multi,omitempty"`
	SelfPaced  bool              `json:"selfPaced,omitempty"`
}

// Modes lists every playable mode.
func (h *HistoryHandler) Modes(c *gin.Context) {
	ids := models.Modes()
	out := make([]modeInfo, 0, len(ids))
	for _, id := range ids {
		d, err := models.LookupMode(id)
		if err != nil {
			continue
		}
		out = append(out, modeInfo{
			ID:         d.ID,
			ShortName:  d.ShortName,
			LongName:   d.LongName,
			Modalities: d.Modalities,
			Crab:       d.Crab,
			Multi:      d.Multi,
			SelfPaced:  d.SelfPaced,
		})
	}
	c.JSON(http.StatusOK, gin.H{"modes": out})
}
