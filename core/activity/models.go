package activity

import (
	"bytes"
	"encoding/json"

	"github.com/volatiletech/null/v8"

	"github.com/bitdevs/estudos/core"
)

// Target narrows which users an activity applies to. Unset or empty dimensions match everyone.
type Target struct {
	Curso    null.String `json:"curso"`
	Turma    null.String `json:"turma"`
	Semestre null.String `json:"semestre"`
	Periodo  null.String `json:"periodo"`
}

// UnmarshalJSON accepts numbers and booleans as dimension values, compared by their text.
func (t *Target) UnmarshalJSON(data []byte) error {
	type plain Target
	var p plain
	if err := json.Unmarshal(core.StringifyScalars(data, "curso", "turma", "semestre", "periodo"), &p); err != nil {
		return err
	}
	*t = Target(p)
	return nil
}

// dimensions returns the set dimensions of t by attribute name.
func (t *Target) dimensions() map[string]string {
	dims := make(map[string]string, 4)
	if t == nil {
		return dims
	}
	for name, v := range map[string]null.String{
		"curso":    t.Curso,
		"turma":    t.Turma,
		"semestre": t.Semestre,
		"periodo":  t.Periodo,
	} {
		if v.Valid && v.String != "" {
			dims[name] = v.String
		}
	}
	return dims
}

// TargetFrom builds a Target whose blank values are stored as null.
func TargetFrom(curso, turma, semestre, periodo string) *Target {
	return &Target{
		Curso:    optional(curso),
		Turma:    optional(turma),
		Semestre: optional(semestre),
		Periodo:  optional(periodo),
	}
}

func optional(s string) null.String {
	s = core.CleanString(s)
	return null.NewString(s, s != "")
}

type Comment struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

type Submission struct {
	Student  string       `json:"student"`
	Text     string       `json:"text"`
	Date     string       `json:"date"`
	Grade    null.Float64 `json:"grade"`
	GradedBy null.String  `json:"graded_by,omitempty"`
}

func (s Submission) Graded() bool { return s.Grade.Valid }

type Activity struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Deadline    string       `json:"deadline"`
	Target      *Target      `json:"target"`
	Comments    []Comment    `json:"comments"`
	Submissions []Submission `json:"submissions"`
	Attachments []string     `json:"attachments"`
}

// SubmittedBy reports whether student has at least one submission.
func (a Activity) SubmittedBy(student string) bool {
	for _, s := range a.Submissions {
		if s.Student == student {
			return true
		}
	}
	return false
}

// SubmissionsOf returns the submissions of student, optionally restricted to one date.
func (a Activity) SubmissionsOf(student string, date ...string) []Submission {
	var subs []Submission
	for _, s := range a.Submissions {
		if s.Student != student {
			continue
		}
		if len(date) > 0 && s.Date != date[0] {
			continue
		}
		subs = append(subs, s)
	}
	return subs
}

// MarshalJSON writes empty arrays for nil sequences.
func (a Activity) MarshalJSON() ([]byte, error) {
	type plain Activity
	a.normalize()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain(a)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalize replaces nil sequences with empty ones.
func (a *Activity) normalize() {
	if a.Comments == nil {
		a.Comments = []Comment{}
	}
	if a.Submissions == nil {
		a.Submissions = []Submission{}
	}
	if a.Attachments == nil {
		a.Attachments = []string{}
	}
}

// NewActivity contains information needed to create a new Activity.
type NewActivity struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	Deadline    string `json:"deadline" validate:"required,notblank"`
	Curso       string `json:"curso"`
	Turma       string `json:"turma"`
	Semestre    string `json:"semestre"`
	Periodo     string `json:"periodo"`
}

func (na *NewActivity) clean() {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Deadline = core.CleanString(na.Deadline)
}

// NewSubmission is a student's answer to an activity.
type NewSubmission struct {
	Student string `json:"student" validate:"required,notblank"`
	Text    string `json:"text" validate:"required,notblank"`
}

type NewComment struct {
	Author string `json:"author" validate:"required,notblank"`
	Text   string `json:"text" validate:"required,notblank"`
}

// NewGrade grades the submissions of Student made on Date. A null Score is rejected.
type NewGrade struct {
	Student string       `json:"student" validate:"required,notblank"`
	Date    string       `json:"date" validate:"required,isodate"`
	Score   null.Float64 `json:"score"`
	Grader  string       `json:"grader" validate:"required,notblank"`
	Subject string       `json:"subject" validate:"required,notblank"`
}

// AttendanceSheet lists the students of Turma marked absent on Date.
type AttendanceSheet struct {
	Date     string   `json:"date"`
	Turma    string   `json:"turma" validate:"required,notblank"`
	Students []string `json:"students"`
	MarkedBy string   `json:"marked_by" validate:"required,notblank"`
}

// Performance is the share of a class's activities a student submitted.
type Performance struct {
	Student string  `json:"student"`
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// Dashboard summarises a student's home screen.
type Dashboard struct {
	Pending  []Activity      `json:"pending"`
	Upcoming []Activity      `json:"upcoming"`
	Comments []RecentComment `json:"comments"`
}

type RecentComment struct {
	ActivityID int    `json:"activity_id"`
	Activity   string `json:"activity"`
	Author     string `json:"author"`
	Text       string `json:"text"`
}

// CalendarDay groups the activities due on Date. Date is empty for the undated bucket.
type CalendarDay struct {
	Date       string     `json:"date"`
	Activities []Activity `json:"activities"`
}
