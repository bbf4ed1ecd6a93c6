package services

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/huangang/thesisdesk/internal/models"
)

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func TestNotificationService_Process(t *testing.T) {
	db := openTestDB(t)
	adviser := createUser(t, db, models.RoleFaculty, "Ada", "Lovelace")
	member := createUser(t, db, models.RoleStaff, "Alan", "Turing")
	student := createStudent(t, db, "2021-0001", "Grace", "<Hopper>")
	mailer := &fakeMailer{}
	svc := NewNotificationService(db, mailer)

	err := svc.Process(context.Background(), &NotificationTask{
		Event:      EventAdviseeStatusChanged,
		AdviseeID:  "adv-1",
		AdviserID:  adviser.ID,
		StudentID:  student.ID,
		Status:     "ACTIVE",
		PrevStatus: "PENDING",
		MemberIDs:  []string{member.ID, adviser.ID},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, expected 1", len(mailer.sent))
	}

	mail := mailer.sent[0]
	expected := []string{adviser.Email, member.Email, student.Email}
	sort.Strings(expected)
	if !reflect.DeepEqual(mail.to, expected) {
		t.Errorf("to = %v, expected %v", mail.to, expected)
	}
	if mail.subject != "[ThesisDesk] Advising status changed" {
		t.Errorf("subject = %q", mail.subject)
	}
	if !strings.Contains(mail.body, "from PENDING to ACTIVE") {
		t.Errorf("body does not describe the transition: %s", mail.body)
	}
	if strings.Contains(mail.body, "<Hopper>") || !strings.Contains(mail.body, "&lt;Hopper&gt;") {
		t.Error("names must be HTML escaped")
	}
}

func TestNotificationService_NoRecipients(t *testing.T) {
	db := openTestDB(t)
	mailer := &fakeMailer{}
	svc := NewNotificationService(db, mailer)

	if err := svc.Process(context.Background(), &NotificationTask{Event: EventAdviseeDeleted, AdviserID: "gone"}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := svc.Process(context.Background(), nil); err != nil {
		t.Fatalf("Process(nil) error = %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("sent %d mails, expected none", len(mailer.sent))
	}
}

func TestNotificationService_MailerError(t *testing.T) {
	db := openTestDB(t)
	adviser := createUser(t, db, models.RoleFaculty, "Ada", "Lovelace")
	svc := NewNotificationService(db, &fakeMailer{err: errors.New("smtp down")})

	err := svc.Process(context.Background(), &NotificationTask{Event: EventAdviseeRequested, AdviserID: adviser.ID})
	if err == nil {
		t.Error("Process() should return the mailer error so the task is retried")
	}
}

func TestEmailService_DisabledIsNoop(t *testing.T) {
	db := openTestDB(t)
	if err := models.Seed(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := NewEmailService(db).Send([]string{"a@example.edu"}, "subject", "body"); err != nil {
		t.Errorf("Send() with email disabled error = %v, expected nil", err)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("desk@example.edu", []string{"a@example.edu", "b@example.edu"}, "Hello", "<p>hi</p>")

	if !strings.HasPrefix(msg, "From: desk@example.edu\r\nTo: a@example.edu,b@example.edu\r\nSubject: Hello\r\n") {
		t.Errorf("unexpected headers: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>") {
		t.Errorf("body not separated from headers: %q", msg)
	}
}
