package slack

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/slack-go/slack"
)

// Block Kit limits
const (
	maxHeaderBytes  = 150
	maxSectionBytes = 3000
)

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8
// sequence
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// severityEmoji renders alert and tolerance severities. Both use "RED".
func severityEmoji(severity string) string {
	switch severity {
	case string(types.AlertStatusRed):
		return ":red_circle:"
	case string(types.AlertStatusYellow), string(types.ToleranceAmber):
		return ":large_yellow_circle:"
	default:
		return ":white_circle:"
	}
}

func header(text string) slack.Block {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, truncateToMaxBytes(text, maxHeaderBytes), true, false))
}

func field(label, value string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, truncateToMaxBytes(fmt.Sprintf("*%s*\n%s", label, value), maxSectionBytes), false, false)
}

func fields(f ...*slack.TextBlockObject) slack.Block {
	return slack.NewSectionBlock(nil, f, nil)
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit != "" {
		s += " " + unit
	}
	return s
}

func alertMessage(alert *model.Alert, indicator *model.Indicator) ([]slack.Block, string) {
	text := fmt.Sprintf("%s KRI %s is %s", severityEmoji(string(alert.Severity)), indicator.ID, alert.Severity)
	blocks := []slack.Block{
		header(fmt.Sprintf("KRI alert: %s", indicator.Name)),
		fields(
			field("Indicator", indicator.ID),
			field("Severity", severityEmoji(string(alert.Severity))+" "+string(alert.Severity)),
			field("Value", formatValue(alert.Value, indicator.Unit)),
			field("State", string(alert.State)),
		),
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, "Alert ID: "+alert.ID, false, false)),
	}
	return blocks, text
}

func breachMessage(breach *model.Breach, cfg *model.ToleranceConfig) ([]slack.Block, string) {
	text := fmt.Sprintf("%s Tolerance %s is %s", severityEmoji(string(breach.Severity)), cfg.Name, breach.Severity)
	blocks := []slack.Block{
		header(fmt.Sprintf("Tolerance breach: %s", cfg.Name)),
		fields(
			field("Severity", severityEmoji(string(breach.Severity))+" "+string(breach.Severity)),
			field("Value", formatValue(breach.Value, cfg.Unit)),
			field("Metric", string(cfg.MetricType)),
			field("Materiality", string(cfg.Materiality)),
		),
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, "Breach ID: "+breach.ID, false, false)),
	}
	return blocks, text
}

func commitMessage(commit *model.PeriodCommit) ([]slack.Block, string) {
	text := fmt.Sprintf("Period %s committed by %s", commit.Period, commit.CommittedBy)
	blocks := []slack.Block{
		header(fmt.Sprintf("Period %s committed", commit.Period)),
		fields(
			field("Risks", strconv.Itoa(commit.RiskCount)),
			field("Total inherent", strconv.Itoa(commit.TotalInherent)),
			field("Total residual", strconv.Itoa(commit.TotalResidual)),
			field("Next period", commit.NextPeriod.String()),
		),
	}
	if commit.Note != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, truncateToMaxBytes(commit.Note, maxSectionBytes), false, false), nil, nil))
	}
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, "Committed by "+commit.CommittedBy, false, false)))
	return blocks, text
}
