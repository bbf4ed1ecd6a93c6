package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService turns advisee notification tasks into e-mails for the
// adviser, the student and the members involved.
type NotificationService struct {
	db     *gorm.DB
	mailer Mailer
}

func NewNotificationService(db *gorm.DB, mailer Mailer) *NotificationService {
	return &NotificationService{db: db, mailer: mailer}
}

// Process is the TaskProcessor for advisee notifications.
func (s *NotificationService) Process(ctx context.Context, task *NotificationTask) error {
	if task == nil {
		return nil
	}

	recipients, err := s.recipients(ctx, task)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	if len(recipients) == 0 {
		logger.Debug().Str("advisee_id", task.AdviseeID).Str("event", task.Event).Msg("[Notification] no recipients")
		return nil
	}

	subject, body := s.compose(ctx, task)
	to := make([]string, 0, len(recipients))
	for _, u := range recipients {
		to = append(to, u.Email)
	}
	if err := s.mailer.Send(to, subject, body); err != nil {
		return err
	}

	logger.Info().Str("advisee_id", task.AdviseeID).Str("event", task.Event).Int("recipients", len(to)).Msg("[Notification] sent")
	return nil
}

func (s *NotificationService) recipients(ctx context.Context, task *NotificationTask) ([]models.User, error) {
	ids := normalizeIDs(append([]string{task.AdviserID, task.StudentID}, task.MemberIDs...))
	if len(ids) == 0 {
		return nil, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ? AND email <> ''", ids).Order("email").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *NotificationService) userName(ctx context.Context, id string) string {
	var u models.User
	if id == "" || s.db.WithContext(ctx).Select("id", "first_name", "middle_name", "last_name").First(&u, "id = ?", id).Error != nil {
		return "(unknown)"
	}
	return u.FullName()
}

func (s *NotificationService) compose(ctx context.Context, task *NotificationTask) (string, string) {
	adviser := s.userName(ctx, task.AdviserID)
	student := s.userName(ctx, task.StudentID)

	var subject, summary string
	switch task.Event {
	case EventAdviseeRequested:
		subject = "New advising request"
		summary = fmt.Sprintf("%s requested to advise %s.", adviser, student)
	case EventAdviseeStatusChanged:
		subject = "Advising status changed"
		summary = fmt.Sprintf("The advising of %s by %s changed from %s to %s.", student, adviser, task.PrevStatus, task.Status)
	case EventAdviseeDeleted:
		subject = "Advising record removed"
		summary = fmt.Sprintf("The advising record of %s by %s was removed.", student, adviser)
	default:
		subject = "Advising record updated"
		summary = fmt.Sprintf("The advising record of %s by %s was updated.", student, adviser)
	}

	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(subject)))
	sb.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(summary)))
	sb.WriteString("<table style=\"border-collapse: collapse;\">")
	for _, r := range []struct{ label, value string }{
		{"Adviser", adviser},
		{"Student", student},
		{"Status", task.Status},
	} {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>",
			r.label, html.EscapeString(r.value)))
	}
	sb.WriteString("</table>")
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">Sent by ThesisDesk</p>")
	sb.WriteString("</body></html>")

	return "[ThesisDesk] " + subject, sb.String()
}
