package activity

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("activity not found")
	ErrSubmissionNotFound = errors.New("no submission for this student on this date")
	ErrInvalidScore       = user.ErrInvalidScore
	ErrScoreRequired      = errors.New("score is required")
	ErrInvalidDate        = errors.New("date must be in the YYYY-MM-DD format")
	ErrNoAttachmentStore  = errors.New("attachments are not configured")
)

const upcomingLimit = 5

// nowFunc is mockable in tests.
var nowFunc = time.Now

type (
	// Repository persists the Atividades collection.
	Repository interface {
		QueryActivities(ctx context.Context) ([]Activity, error)
		GetActivity(ctx context.Context, id int) (Activity, error)
		// CreateActivity assigns the next id to act and appends it.
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		// UpdateActivity applies fn to the activity with id and saves the collection.
		UpdateActivity(ctx context.Context, id int, fn func(*Activity) error) (Activity, error)
	}

	// Students is the part of the user service the engine writes student records through.
	Students interface {
		Roster(ctx context.Context, turma string) ([]user.Session, error)
		RecordGrade(ctx context.Context, student, subject string, sem user.Semester, score float64) error
		MarkAbsent(ctx context.Context, turma string, students []string, date, markedBy string) (int, error)
	}

	// FileStore stores attachment files by name.
	FileStore interface {
		Put(ctx context.Context, name string, r io.Reader) error
	}

	Service struct {
		repo       Repository
		students   Students
		files      FileStore
		classifier Classifier
		log        core.Logger
		validate   *validator.Validate
	}
)

func NewService(
	repo Repository,
	students Students,
	files FileStore,
	classifier Classifier,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	if classifier == nil {
		classifier = FallbackClassifier{}
	}
	return &Service{
		repo:       repo,
		students:   students,
		files:      files,
		classifier: classifier,
		log:        logger,
		validate:   validate,
	}
}

func (svc *Service) Create(ctx context.Context, na NewActivity) (Activity, error) {
	na.clean()
	if err := svc.validate.Struct(na); err != nil {
		return Activity{}, err
	}
	act := Activity{
		Title:       na.Title,
		Description: na.Description,
		Deadline:    na.Deadline,
		Target:      TargetFrom(na.Curso, na.Turma, na.Semestre, na.Periodo),
	}
	act.normalize()
	return svc.repo.CreateActivity(ctx, act)
}

func (svc *Service) Query(ctx context.Context) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx)
}

func (svc *Service) Get(ctx context.Context, id int) (Activity, error) {
	return svc.repo.GetActivity(ctx, id)
}

// VisibleTo returns the activities sess can see: staff see all, students those targeting them.
func (svc *Service) VisibleTo(ctx context.Context, sess user.Session) ([]Activity, error) {
	acts, err := svc.repo.QueryActivities(ctx)
	if err != nil {
		return nil, err
	}
	if sess.Role.IsStaff() {
		return acts, nil
	}
	visible := make([]Activity, 0, len(acts))
	for _, act := range acts {
		if MatchesTarget(act, sess) {
			visible = append(visible, act)
		}
	}
	return visible, nil
}

// Submit appends a new ungraded submission dated today. Resubmissions are appended too.
func (svc *Service) Submit(ctx context.Context, id int, ns NewSubmission) (Submission, error) {
	ns.Text = core.CleanString(ns.Text)
	if err := svc.validate.Struct(ns); err != nil {
		return Submission{}, err
	}
	sub := Submission{
		Student: ns.Student,
		Text:    ns.Text,
		Date:    core.FormatDate(nowFunc()),
	}
	_, err := svc.repo.UpdateActivity(ctx, id, func(act *Activity) error {
		act.Submissions = append(act.Submissions, sub)
		return nil
	})
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (svc *Service) Comment(ctx context.Context, id int, nc NewComment) (Comment, error) {
	nc.Text = core.CleanString(nc.Text)
	if err := svc.validate.Struct(nc); err != nil {
		return Comment{}, err
	}
	c := Comment{Author: nc.Author, Text: nc.Text}
	_, err := svc.repo.UpdateActivity(ctx, id, func(act *Activity) error {
		act.Comments = append(act.Comments, c)
		return nil
	})
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// Grade sets the score on every submission of ng.Student dated ng.Date, then records it in the
// student's gradebook under the semester of the activity deadline.
// The two writes touch different collections and are not atomic: if the second fails the
// activity stays graded and the inconsistency is logged.
func (svc *Service) Grade(ctx context.Context, id int, ng NewGrade) (Activity, error) {
	if !ng.Score.Valid {
		return Activity{}, core.NewFieldError(ErrScoreRequired, "score")
	}
	score := ng.Score.Float64
	if score < user.MinScore || score > user.MaxScore {
		return Activity{}, core.NewFieldError(ErrInvalidScore, "score")
	}
	if err := svc.validate.Struct(ng); err != nil {
		return Activity{}, err
	}

	act, err := svc.repo.UpdateActivity(ctx, id, func(act *Activity) error {
		var found bool
		for i := range act.Submissions {
			sub := &act.Submissions[i]
			if sub.Student == ng.Student && sub.Date == ng.Date {
				sub.Grade = null.Float64From(score)
				sub.GradedBy = null.StringFrom(ng.Grader)
				found = true
			}
		}
		if !found {
			return ErrSubmissionNotFound
		}
		return nil
	})
	if err != nil {
		return Activity{}, err
	}

	sem := SemesterOf(svc.classifier, act.Deadline)
	if err := svc.students.RecordGrade(ctx, ng.Student, ng.Subject, sem, score); err != nil {
		svc.log.Error("grade saved on activity but not on student record", err, map[string]interface{}{
			"activity": id,
			"student":  ng.Student,
			"subject":  ng.Subject,
			"semester": sem.Key(),
			"score":    score,
		})
		return act, errors.Wrap(err, "recording grade on student")
	}
	return act, nil
}

// Attach stores the content of r as act_<id>_<basename of filename> and lists it on the activity.
func (svc *Service) Attach(ctx context.Context, id int, filename string, r io.Reader) (string, error) {
	if svc.files == nil {
		return "", ErrNoAttachmentStore
	}
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(filename)))
	if base == "/" || base == "." {
		return "", core.NewFieldError(errors.New("invalid file name"), "file")
	}
	if _, err := svc.repo.GetActivity(ctx, id); err != nil {
		return "", err
	}

	name := AttachmentName(id, base)
	if err := svc.files.Put(ctx, name, r); err != nil {
		return "", errors.Wrapf(err, "storing %s", name)
	}
	_, err := svc.repo.UpdateActivity(ctx, id, func(act *Activity) error {
		for _, a := range act.Attachments {
			if a == name {
				return nil
			}
		}
		act.Attachments = append(act.Attachments, name)
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// AttachmentName is the stored name of an attachment of activity id.
func AttachmentName(id int, basename string) string {
	return "act_" + strconv.Itoa(id) + "_" + basename
}

// Dashboard lists the visible activities sess has not submitted, the next dated deadlines and all comments.
func (svc *Service) Dashboard(ctx context.Context, sess user.Session) (Dashboard, error) {
	acts, err := svc.VisibleTo(ctx, sess)
	if err != nil {
		return Dashboard{}, err
	}

	dash := Dashboard{
		Pending:  []Activity{},
		Upcoming: []Activity{},
		Comments: []RecentComment{},
	}
	type dated struct {
		act Activity
		at  time.Time
	}
	var withDates []dated
	for _, act := range acts {
		if !act.SubmittedBy(sess.Username) {
			dash.Pending = append(dash.Pending, act)
		}
		if t, ok := core.ParseDate(act.Deadline); ok {
			withDates = append(withDates, dated{act, t})
		}
		for _, c := range act.Comments {
			dash.Comments = append(dash.Comments, RecentComment{
				ActivityID: act.ID,
				Activity:   act.Title,
				Author:     c.Author,
				Text:       c.Text,
			})
		}
	}
	sort.SliceStable(withDates, func(i, j int) bool { return withDates[i].at.Before(withDates[j].at) })
	for i := 0; i < len(withDates) && i < upcomingLimit; i++ {
		dash.Upcoming = append(dash.Upcoming, withDates[i].act)
	}
	return dash, nil
}

// Calendar groups acts by parsed deadline in date order. Activities without a valid deadline come last, under an empty date.
func Calendar(acts []Activity) []CalendarDay {
	byDate := make(map[string][]Activity)
	var undated []Activity
	for _, act := range acts {
		t, ok := core.ParseDate(act.Deadline)
		if !ok {
			undated = append(undated, act)
			continue
		}
		key := core.FormatDate(t)
		byDate[key] = append(byDate[key], act)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	days := make([]CalendarDay, 0, len(dates)+1)
	for _, d := range dates {
		days = append(days, CalendarDay{Date: d, Activities: byDate[d]})
	}
	if len(undated) > 0 {
		days = append(days, CalendarDay{Activities: undated})
	}
	return days
}
