package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/adinsights/internal/models"
)

// SlackNotifier posts failed report runs to a Slack channel.
type SlackNotifier struct {
	client    *slack.Client
	channel   string
	publicURL string
}

func NewSlackNotifier(token, channel, publicURL string, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		client:    slack.New(token, opts...),
		channel:   channel,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *SlackNotifier) NotifyFailure(ctx context.Context, cfg *models.ReportConfig, reportID uint, cause error) error {
	fields := []slack.AttachmentField{
		{
			Title: "Config",
			Value: strconv.FormatUint(uint64(cfg.ID), 10),
			Short: true,
		},
		{
			Title: "Platform",
			Value: strings.ToUpper(string(cfg.Platform)),
			Short: true,
		},
		{
			Title: "Level",
			Value: cfg.Level,
			Short: true,
		},
		{
			Title: "Cadence",
			Value: string(cfg.Cadence),
			Short: true,
		},
	}
	if reportID != 0 {
		fields = append(fields, slack.AttachmentField{
			Title: "Report",
			Value: fmt.Sprintf("%s/api/reports/view/%d", s.publicURL, reportID),
		})
	}

	attachment := slack.Attachment{
		Color:  getFailureColor(cause),
		Title:  fmt.Sprintf("Insight report failed for config %d", cfg.ID),
		Text:   cause.Error(),
		Fields: fields,
		Footer: "adinsights",
		Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

// Delivery problems are shown in amber, everything else in red.
func getFailureColor(cause error) string {
	var derr *DeliveryError
	if errors.As(cause, &derr) {
		return "#ffcc00"
	}
	return "#ff0000"
}
