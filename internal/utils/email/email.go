package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/expiwt/AlphaHack/internal/config"
	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// maxListedRejections caps the rejected rows quoted in one report
const maxListedRejections = 20

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendUploadReport emails the outcome of a CSV upload to the risk team
func (s *Sender) SendUploadReport(upload *models.Upload) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.ReportEmail}
	e.Subject = fmt.Sprintf("Client upload %s: %d processed, %d rejected",
		upload.FileName, upload.Processed, len(upload.RejectedRows))
	e.Text = []byte(uploadReportBody(upload))

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send upload report to %s: %v", s.cfg.ReportEmail, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.ReportEmail, e.Subject)
	return nil
}

func uploadReportBody(upload *models.Upload) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "The file %s was uploaded by %s at %s.\n",
		upload.FileName, upload.UploadedBy, upload.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Upload id: %s\nChecksum: %s\n\n", upload.ID, upload.Checksum)
	fmt.Fprintf(&b, "Processed clients: %d\nRejected rows: %d\n", upload.Processed, len(upload.RejectedRows))

	if len(upload.RejectedRows) > 0 {
		b.WriteString("\nRejected rows:\n")
		for i, r := range upload.RejectedRows {
			if i == maxListedRejections {
				fmt.Fprintf(&b, "  ... and %d more\n", len(upload.RejectedRows)-maxListedRejections)
				break
			}
			fmt.Fprintf(&b, "  row %d: %s\n", r.Row, r.Reason)
		}
	}
	b.WriteString("\nBest regards,\nCredit Scoring Service")
	return b.String()
}
