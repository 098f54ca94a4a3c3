package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/adinsights/internal/models"
	"github.com/adinsights/internal/report"
)

// Delivery stages reported by DeliveryError.
const (
	StagePDF    = "pdf"
	StageSend   = "send"
	StageRecord = "record"
)

// DeliveryError is returned when an email could not be produced, sent or
// recorded.
type DeliveryError struct {
	Stage string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("email delivery failed (%s): %v", e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type PDFRenderer interface {
	Render(ctx context.Context, page string) ([]byte, error)
}

// SentRecorder stores the delivery result on the report.
type SentRecorder interface {
	MarkEmailSent(ctx context.Context, id uint, address string, at time.Time) error
}

// Dispatcher emails finished reports, optionally as a PDF attachment.
type Dispatcher struct {
	mailer   Mailer
	pdf      PDFRenderer
	recorder SentRecorder
	from     string
	now      func() time.Time
}

// NewDispatcher builds a Dispatcher. A nil pdf sends the report HTML as the
// email body.
func NewDispatcher(mailer Mailer, pdf PDFRenderer, recorder SentRecorder, from string) *Dispatcher {
	return &Dispatcher{
		mailer:   mailer,
		pdf:      pdf,
		recorder: recorder,
		from:     from,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func Subject(cfg *models.ReportConfig, reportID uint) string {
	return fmt.Sprintf("%s Scheduled Insight Report #%d", strings.ToUpper(string(cfg.Platform)), reportID)
}

func AttachmentName(cfg *models.ReportConfig, reportID uint) string {
	return fmt.Sprintf("%s_Report_%d.pdf", cfg.Platform, reportID)
}

func (d *Dispatcher) Dispatch(ctx context.Context, cfg *models.ReportConfig, reportID uint, reportHTML string) error {
	to := cfg.EmailAddress()
	msg := &Message{
		From:    d.from,
		To:      []string{to},
		Subject: Subject(cfg, reportID),
	}

	if d.pdf != nil {
		doc, err := d.pdf.Render(ctx, PrintPage(reportHTML, reportID, to))
		if err != nil {
			return &DeliveryError{Stage: StagePDF, Err: err}
		}
		notice := fmt.Sprintf("Your %s %s insight report #%d is attached as a PDF.",
			cfg.Cadence, strings.ToUpper(string(cfg.Platform)), reportID)
		msg.HTML = "<p>" + html.EscapeString(notice) + "</p>"
		msg.Text = notice
		msg.Attachments = []Attachment{{
			Filename:    AttachmentName(cfg, reportID),
			ContentType: "application/pdf",
			Content:     doc,
		}}
	} else {
		msg.HTML = reportHTML
		text, err := report.PlainText(reportHTML)
		if err != nil {
			slog.Warn("sending report without text part", "report_id", reportID, "error", err)
		}
		msg.Text = text
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		return &DeliveryError{Stage: StageSend, Err: err}
	}

	if err := d.recorder.MarkEmailSent(context.WithoutCancel(ctx), reportID, to, d.now()); err != nil {
		return &DeliveryError{Stage: StageRecord, Err: err}
	}
	return nil
}
