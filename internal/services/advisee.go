package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/thesisdesk/internal/listing"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MsgStudentNotFound      = "Student not found."
	MsgNotAStudent          = "Selected user is not a student."
	MsgStudentHasActive     = "This student already has an active adviser."
	MsgStudentHasPending    = "This student already has a pending request."
	MsgAdviseeCreated       = "Advisee request successfully created."
	MsgAdviseeUpdated       = "Advisee successfully updated."
	MsgAdviseeStatusUpdated = "Advisee status successfully updated."
	MsgAdviseeDeleted       = "Advisee successfully deleted."
	MsgAdviseeNotFound      = "Advisee not found."
	MsgCreateAdviseeFailed  = "Failed to create advisee request."
	MsgUpdateAdviseeFailed  = "Failed to update advisee."
	MsgUpdateStatusFailed   = "Failed to update status."
	MsgDeleteAdviseeFailed  = "Failed to delete advisee."
)

const (
	defaultOptionLimit = 10
	maxOptionLimit     = 100
)

type AdviseeResult = response.Result[*models.Advisee]

type AddAdviseeRequest struct {
	AdviserID string   `json:"adviserId"`
	StudentID string   `json:"studentId"`
	MemberIDs []string `json:"memberIds"`
}

type UpdateAdviseeRequest struct {
	AdviserID string                `json:"adviserId"`
	StudentID string                `json:"studentId"`
	MemberIDs []string              `json:"memberIds"`
	Status    *models.AdviseeStatus `json:"status" binding:"omitempty,advisee_status"`
}

// Option is an entry of a selection list.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var adviseeListSpec = &listing.Spec{
	Fields: map[string]string{
		"id":        "id",
		"adviserId": "adviser_id",
		"studentId": "student_id",
		"status":    "status",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	DateFields: map[string]bool{"createdAt": true, "updatedAt": true},
	Search: func(db *gorm.DB, pattern string) *gorm.DB {
		return db.Where(
			"student_id IN (SELECT id FROM users WHERE "+
				listing.LikeExpr("first_name")+" OR "+
				listing.LikeExpr("last_name")+" OR "+
				listing.LikeExpr("email")+")",
			pattern, pattern, pattern,
		)
	},
	Preloads: []string{"Adviser", "Student", "Members.Member"},
}

// AdviseeService owns the adviser/student assignment lifecycle.
type AdviseeService struct {
	db    *gorm.DB
	hub   Revalidator
	queue TaskQueue
	now   func() time.Time
}

// NewAdviseeService wires the service. hub and queue may be nil.
func NewAdviseeService(db *gorm.DB, hub Revalidator, queue TaskQueue) *AdviseeService {
	return &AdviseeService{db: db, hub: hub, queue: queue, now: time.Now}
}

// List returns one page of the adviser's advisees. A blank adviserID yields
// an empty page without querying.
func (s *AdviseeService) List(ctx context.Context, adviserID string, p listing.Params) (*listing.Page[models.Advisee], error) {
	if strings.TrimSpace(adviserID) == "" {
		return listing.Empty[models.Advisee](p), nil
	}
	return listing.List[models.Advisee](ctx, s.db, adviseeListSpec, p, func(db *gorm.DB) *gorm.DB {
		return db.Where("adviser_id = ?", adviserID)
	})
}

// Get loads an advisee with adviser, student and members.
func (s *AdviseeService) Get(ctx context.Context, id string) (*models.Advisee, error) {
	var advisee models.Advisee
	err := s.db.WithContext(ctx).
		Preload("Adviser").
		Preload("Student").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Members.Member").
		Where("id = ?", id).
		First(&advisee).Error
	if err != nil {
		return nil, err
	}
	return &advisee, nil
}

// AddAdvisee creates a PENDING request unless the student already has a
// PENDING or ACTIVE record. The check and the insert share one transaction and,
// on databases with row locks, the student row is locked for its duration.
func (s *AdviseeService) AddAdvisee(ctx context.Context, req AddAdviseeRequest) (AdviseeResult, error) {
	req.AdviserID = strings.TrimSpace(req.AdviserID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := requireFields("adviserId", req.AdviserID, "studentId", req.StudentID); err != nil {
		return AdviseeResult{}, err
	}
	memberIDs := normalizeIDs(req.MemberIDs)

	var (
		created   models.Advisee
		rejection string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student models.User
		if err := lockForUpdate(tx).Where("id = ?", req.StudentID).First(&student).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rejection = MsgStudentNotFound
				return nil
			}
			return err
		}
		if student.Role != models.RoleStudent {
			rejection = MsgNotAStudent
			return nil
		}

		var open []models.Advisee
		if err := tx.Where("student_id = ? AND status IN ?", req.StudentID,
			[]models.AdviseeStatus{models.AdviseeActive, models.AdviseePending}).
			Find(&open).Error; err != nil {
			return err
		}
		for _, a := range open {
			if a.Status == models.AdviseeActive {
				rejection = MsgStudentHasActive
				return nil
			}
		}
		if len(open) > 0 {
			rejection = MsgStudentHasPending
			return nil
		}

		now := s.now()
		created = models.Advisee{
			AdviserID: req.AdviserID,
			StudentID: req.StudentID,
			Status:    models.AdviseePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Omit(clause.Associations).Create(&created).Error; err != nil {
			return err
		}
		return createMembers(tx, created.ID, memberIDs)
	})
	if err != nil {
		logger.Error().Err(err).Str("student_id", req.StudentID).Str("adviser_id", req.AdviserID).Msg("add advisee failed")
		return response.Fail[*models.Advisee](MsgCreateAdviseeFailed), nil
	}
	if rejection != "" {
		return response.Fail[*models.Advisee](rejection), nil
	}

	advisee := s.reload(ctx, &created)
	s.changed("created", EventAdviseeRequested, advisee, "")
	return response.Ok(advisee, MsgAdviseeCreated), nil
}

// UpdateAdvisee overwrites the adviser, student and optionally the status, and
// replaces the member set. It does not re-check the one open request per
// student rule.
func (s *AdviseeService) UpdateAdvisee(ctx context.Context, id string, req UpdateAdviseeRequest) (AdviseeResult, error) {
	req.AdviserID = strings.TrimSpace(req.AdviserID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := requireFields("id", id, "adviserId", req.AdviserID, "studentId", req.StudentID); err != nil {
		return AdviseeResult{}, err
	}
	if req.Status != nil && !req.Status.Valid() {
		return AdviseeResult{}, invalidf("Invalid advisee status %q.", *req.Status)
	}
	memberIDs := normalizeIDs(req.MemberIDs)

	var (
		current  models.Advisee
		notFound bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound = true
				return nil
			}
			return err
		}

		updates := map[string]interface{}{
			"adviser_id": req.AdviserID,
			"student_id": req.StudentID,
			"updated_at": s.now(),
		}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("advisee_id = ?", id).Delete(&models.AdviseeMember{}).Error; err != nil {
			return err
		}
		return createMembers(tx, id, memberIDs)
	})
	if err != nil {
		logger.Error().Err(err).Str("advisee_id", id).Msg("update advisee failed")
		return response.Fail[*models.Advisee](MsgUpdateAdviseeFailed), nil
	}
	if notFound {
		return response.FailError[*models.Advisee](MsgAdviseeNotFound), nil
	}

	advisee := s.reload(ctx, &current)
	s.changed("updated", EventAdviseeUpdated, advisee, "")
	return response.Ok(advisee, MsgAdviseeUpdated), nil
}

// UpdateAdviseeStatus moves an advisee through PENDING -> ACTIVE -> INACTIVE.
// Members are left untouched.
func (s *AdviseeService) UpdateAdviseeStatus(ctx context.Context, id string, status models.AdviseeStatus) (AdviseeResult, error) {
	if err := requireFields("id", id, "status", string(status)); err != nil {
		return AdviseeResult{}, err
	}
	if !status.Valid() {
		return AdviseeResult{}, invalidf("Invalid advisee status %q.", status)
	}

	var (
		current   models.Advisee
		prev      models.AdviseeStatus
		notFound  bool
		rejection string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound = true
				return nil
			}
			return err
		}
		prev = current.Status
		if !prev.CanTransition(status) {
			rejection = fmt.Sprintf("Invalid status transition from %s to %s.", prev, status)
			return nil
		}
		return tx.Model(&current).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": s.now(),
		}).Error
	})
	if err != nil {
		logger.Error().Err(err).Str("advisee_id", id).Str("status", string(status)).Msg("update advisee status failed")
		return response.FailError[*models.Advisee](MsgUpdateStatusFailed), nil
	}
	if notFound {
		return response.FailError[*models.Advisee](MsgAdviseeNotFound), nil
	}
	if rejection != "" {
		return response.Fail[*models.Advisee](rejection), nil
	}

	advisee := s.reload(ctx, &current)
	s.changed("updated", EventAdviseeStatusChanged, advisee, prev)
	return response.Ok(advisee, MsgAdviseeStatusUpdated), nil
}

// DeleteAdvisee removes the members and then the advisee. A missing id is
// reported without writing anything.
func (s *AdviseeService) DeleteAdvisee(ctx context.Context, id string) (AdviseeResult, error) {
	if err := requireFields("id", id); err != nil {
		return AdviseeResult{}, err
	}

	var (
		current  models.Advisee
		notFound bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound = true
				return nil
			}
			return err
		}
		if err := tx.Where("advisee_id = ?", id).Delete(&models.AdviseeMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&current).Error
	})
	if err != nil {
		logger.Error().Err(err).Str("advisee_id", id).Msg("delete advisee failed")
		return response.FailError[*models.Advisee](MsgDeleteAdviseeFailed), nil
	}
	if notFound {
		return response.FailError[*models.Advisee](MsgAdviseeNotFound), nil
	}

	s.changed("deleted", EventAdviseeDeleted, &current, "")
	return response.Ok[*models.Advisee](nil, MsgAdviseeDeleted), nil
}

// SearchStudents returns up to limit students ordered by last name. A blank
// query browses instead of filtering.
func (s *AdviseeService) SearchStudents(ctx context.Context, query string, limit int) ([]Option, error) {
	limit = clampLimit(limit)

	q := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleStudent)
	if term := strings.TrimSpace(query); term != "" {
		pattern := listing.LikePattern(term)
		q = q.Where("("+listing.LikeExpr("student_id")+" OR "+
			listing.LikeExpr("first_name")+" OR "+
			listing.LikeExpr("middle_name")+" OR "+
			listing.LikeExpr("last_name")+")",
			pattern, pattern, pattern, pattern)
	}

	var students []models.User
	if err := q.Order("last_name ASC").Order("first_name ASC").Order("id ASC").Limit(limit).Find(&students).Error; err != nil {
		return nil, err
	}

	options := make([]Option, 0, len(students))
	for i := range students {
		options = append(options, Option{ID: students[i].ID, Name: StudentLabel(&students[i])})
	}
	return options, nil
}

// StudentLabel formats "<studentId> — First Middle Last".
func StudentLabel(u *models.User) string {
	name := u.FullName()
	if u.StudentID == nil || *u.StudentID == "" {
		return name
	}
	return *u.StudentID + " — " + name
}

// ListFaculty returns every FACULTY and STAFF user ordered by last name.
func (s *AdviseeService) ListFaculty(ctx context.Context) ([]Option, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role IN ?", []models.Role{models.RoleFaculty, models.RoleStaff}).
		Order("last_name ASC").Order("first_name ASC").Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	options := make([]Option, 0, len(users))
	for i := range users {
		options = append(options, Option{ID: users[i].ID, Name: users[i].FullName()})
	}
	return options, nil
}

func (s *AdviseeService) reload(ctx context.Context, a *models.Advisee) *models.Advisee {
	loaded, err := s.Get(ctx, a.ID)
	if err != nil {
		logger.Warn().Err(err).Str("advisee_id", a.ID).Msg("reload advisee failed")
		return a
	}
	return loaded
}

func (s *AdviseeService) changed(action, event string, a *models.Advisee, prev models.AdviseeStatus) {
	if s.hub != nil {
		s.hub.Revalidate(TagAdvisees, action, a.ID)
	}
	if s.queue == nil {
		return
	}

	task := &NotificationTask{
		Event:      event,
		AdviseeID:  a.ID,
		AdviserID:  a.AdviserID,
		StudentID:  a.StudentID,
		Status:     string(a.Status),
		PrevStatus: string(prev),
	}
	for _, m := range a.Members {
		task.MemberIDs = append(task.MemberIDs, m.MemberID)
	}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Warn().Err(err).Str("advisee_id", a.ID).Str("event", event).Msg("enqueue notification failed")
	}
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
// sqlite connections are limited to one, which already serializes transactions.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func createMembers(tx *gorm.DB, adviseeID string, memberIDs []string) error {
	if len(memberIDs) == 0 {
		return nil
	}
	members := make([]models.AdviseeMember, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		members = append(members, models.AdviseeMember{
			AdviseeID: adviseeID,
			MemberID:  memberID,
			Type:      models.MemberTypeMember,
		})
	}
	return tx.Omit(clause.Associations).Create(&members).Error
}

// normalizeIDs trims ids and drops blanks and duplicates, keeping order.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultOptionLimit
	}
	if limit > maxOptionLimit {
		return maxOptionLimit
	}
	return limit
}
