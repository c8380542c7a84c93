package activity_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/activity"
	"github.com/bitdevs/estudos/core/user"
	"github.com/bitdevs/estudos/storage/jsondb"
	testutil "github.com/bitdevs/estudos/tests"
)

func fixedNow(date string) func() time.Time {
	t, _ := time.Parse(core.ISODate, date)
	return func() time.Time { return t }
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		na      activity.NewActivity
		wantID  int
		wantErr bool
	}{
		{name: "missing title", na: activity.NewActivity{Deadline: "2024-05-01"}, wantErr: true},
		{name: "missing deadline", na: activity.NewActivity{Title: "Lista 1"}, wantErr: true},
		{name: "blank title", na: activity.NewActivity{Title: "  ", Deadline: "2024-05-01"}, wantErr: true},
		{name: "first", na: activity.NewActivity{Title: "Lista 1", Deadline: "2024-05-01", Turma: "3A"}, wantID: 1},
		{name: "unparsable deadline accepted", na: activity.NewActivity{Title: "Projeto", Deadline: "fim do ano"}, wantID: 2},
		{name: "third", na: activity.NewActivity{Title: "Prova", Deadline: "2024-09-01", Curso: "Informática"}, wantID: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := env.ActivitySvc.Create(ctx, tt.na)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, act.ID)
			assert.NotNil(t, act.Submissions)
			assert.NotNil(t, act.Comments)
			assert.NotNil(t, act.Attachments)
		})
	}

	got, err := env.ActivitySvc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "3A", got.Target.Turma.String)
	assert.False(t, got.Target.Curso.Valid)

	_, err = env.ActivitySvc.Get(ctx, 42)
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))
}

func TestService_Create_IDsNeverReused(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		act := env.CreateActivity(t, "A", "2024-05-01", "")
		assert.Equal(t, i, act.ID)
	}

	// remove the last activity behind the store's back
	require.NoError(t, os.WriteFile(env.DB.Path(jsondb.Atividades), []byte(`[{"id": 1, "title": "A"}, {"id": 2, "title": "A"}]`), 0o644))

	act, err := env.ActivitySvc.Create(ctx, activity.NewActivity{Title: "B", Deadline: "2024-05-02"})
	require.NoError(t, err)
	assert.Equal(t, 4, act.ID)
}

func TestService_Submit(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	act := env.CreateActivity(t, "Lista 1", "2024-05-01", "3A")
	defer activity.SetNow(fixedNow("2024-04-20"))()

	sub, err := env.ActivitySvc.Submit(ctx, act.ID, activity.NewSubmission{Student: "ana", Text: " resposta "})
	require.NoError(t, err)
	assert.Equal(t, activity.Submission{Student: "ana", Text: "resposta", Date: "2024-04-20"}, sub)
	assert.False(t, sub.Graded())

	// resubmission appends
	_, err = env.ActivitySvc.Submit(ctx, act.ID, activity.NewSubmission{Student: "ana", Text: "outra"})
	require.NoError(t, err)

	got, err := env.ActivitySvc.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.Len(t, got.Submissions, 2)
	assert.Len(t, got.SubmissionsOf("ana", "2024-04-20"), 2)

	_, err = env.ActivitySvc.Submit(ctx, act.ID, activity.NewSubmission{Student: "ana", Text: "   "})
	assert.Error(t, err)

	_, err = env.ActivitySvc.Submit(ctx, 99, activity.NewSubmission{Student: "ana", Text: "x"})
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))
}

func TestService_Grade(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.CreateUser(t, user.RoleStudent, "ana", "Ana", "3A")
	first := env.CreateActivity(t, "Lista 1", "2024-05-01", "3A")
	second := env.CreateActivity(t, "Lista 2", "2024-10-01", "3A")
	undated := env.CreateActivity(t, "Lista 3", "sem prazo", "3A")

	restore := activity.SetNow(fixedNow("2024-04-20"))
	for _, id := range []int{first.ID, second.ID, undated.ID} {
		_, err := env.ActivitySvc.Submit(ctx, id, activity.NewSubmission{Student: "ana", Text: "feito"})
		require.NoError(t, err)
	}
	restore()

	grade := func(score float64) activity.NewGrade {
		return activity.NewGrade{Student: "ana", Date: "2024-04-20", Score: null.Float64From(score), Grader: "rui", Subject: "Matemática"}
	}

	tests := []struct {
		name    string
		id      int
		ng      activity.NewGrade
		wantErr error
		wantSem user.Semester
	}{
		{name: "above bounds", id: first.ID, ng: grade(10.0001), wantErr: activity.ErrInvalidScore},
		{name: "below bounds", id: first.ID, ng: grade(-0.1), wantErr: activity.ErrInvalidScore},
		{
			name:    "missing score",
			id:      first.ID,
			ng:      activity.NewGrade{Student: "ana", Date: "2024-04-20", Grader: "rui", Subject: "Matemática"},
			wantErr: activity.ErrScoreRequired,
		},
		{
			name:    "no such submission",
			id:      first.ID,
			ng:      activity.NewGrade{Student: "ana", Date: "2024-04-21", Score: null.Float64From(5), Grader: "rui", Subject: "Matemática"},
			wantErr: activity.ErrSubmissionNotFound,
		},
		{name: "no such activity", id: 99, ng: grade(5), wantErr: activity.ErrNotFound},
		{name: "upper bound first semester", id: first.ID, ng: grade(10), wantSem: user.FirstSemester},
		{name: "second semester", id: second.ID, ng: grade(7), wantSem: user.SecondSemester},
		{name: "lower bound undated", id: undated.ID, ng: grade(0), wantSem: user.FirstSemester},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := os.ReadFile(env.DB.Path(jsondb.Atividades))
			require.NoError(t, err)

			act, err := env.ActivitySvc.Grade(ctx, tt.id, tt.ng)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				after, rErr := os.ReadFile(env.DB.Path(jsondb.Atividades))
				require.NoError(t, rErr)
				assert.Equal(t, string(before), string(after))
				return
			}
			require.NoError(t, err)
			sub := act.SubmissionsOf("ana", "2024-04-20")[0]
			assert.Equal(t, tt.ng.Score, sub.Grade)
			assert.Equal(t, "rui", sub.GradedBy.String)

			ana, err := env.UserSvc.Get(ctx, user.RoleStudent, "ana")
			require.NoError(t, err)
			score, tracked := ana.Grades.Lookup("Matemática", tt.wantSem)
			assert.True(t, tracked)
			assert.Equal(t, tt.ng.Score, score)
		})
	}
}

func TestService_Grade_OtherSemesterStaysUnset(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.CreateUser(t, user.RoleStudent, "ana", "Ana", "3A")
	act := env.CreateActivity(t, "Lista 1", "2024-05-01", "3A")
	defer activity.SetNow(fixedNow("2024-04-20"))()
	_, err := env.ActivitySvc.Submit(ctx, act.ID, activity.NewSubmission{Student: "ana", Text: "feito"})
	require.NoError(t, err)

	// each grade reloads the student record written by the previous one
	for _, score := range []float64{6, 9} {
		_, err = env.ActivitySvc.Grade(ctx, act.ID, activity.NewGrade{Student: "ana", Date: "2024-04-20", Score: null.Float64From(score), Grader: "rui", Subject: "Matemática"})
		require.NoError(t, err)
	}

	ana, err := env.UserSvc.Get(ctx, user.RoleStudent, "ana")
	require.NoError(t, err)
	sem1, _ := ana.Grades.Lookup("Matemática", user.FirstSemester)
	assert.Equal(t, null.Float64From(9), sem1)
	sem2, tracked := ana.Grades.Lookup("Matemática", user.SecondSemester)
	assert.True(t, tracked)
	assert.False(t, sem2.Valid)
}

func TestService_Grade_AllMatchingSubmissions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.CreateUser(t, user.RoleStudent, "ana", "Ana", "3A")
	act := env.CreateActivity(t, "Lista 1", "2024-05-01", "3A")
	defer activity.SetNow(fixedNow("2024-04-20"))()

	for _, text := range []string{"v1", "v2"} {
		_, err := env.ActivitySvc.Submit(ctx, act.ID, activity.NewSubmission{Student: "ana", Text: text})
		require.NoError(t, err)
	}
	_, err := env.ActivitySvc.Submit(ctx, act.ID, activity.NewSubmission{Student: "bia", Text: "x"})
	require.NoError(t, err)

	got, err := env.ActivitySvc.Grade(ctx, act.ID, activity.NewGrade{Student: "ana", Date: "2024-04-20", Score: null.Float64From(8), Grader: "rui", Subject: "Português"})
	require.NoError(t, err)
	for _, sub := range got.Submissions {
		assert.Equal(t, sub.Student == "ana", sub.Graded(), sub.Text)
	}
}

func TestService_Grade_StudentMissing(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	act := env.CreateActivity(t, "Lista 1", "2024-05-01", "3A")
	defer activity.SetNow(fixedNow("2024-04-20"))()
	_, err := env.ActivitySvc.Submit(ctx, act.ID, activity.NewSubmission{Student: "fantasma", Text: "x"})
	require.NoError(t, err)

	_, err = env.ActivitySvc.Grade(ctx, act.ID, activity.NewGrade{Student: "fantasma", Date: "2024-04-20", Score: null.Float64From(5), Grader: "rui", Subject: "Matemática"})
	require.Error(t, err)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	// the activity keeps the grade and the gap is logged
	got, err := env.ActivitySvc.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.True(t, got.Submissions[0].Graded())
	assert.Len(t, env.Log.Entries("error"), 1)
}

func TestService_MarkAttendance(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.CreateUser(t, user.RoleStudent, "ana", "Ana", "3A")
	env.CreateUser(t, user.RoleStudent, "bia", "Bia", "3A")
	env.CreateUser(t, user.RoleStudent, "caio", "Caio", "3B")

	tests := []struct {
		name      string
		sheet     activity.AttendanceSheet
		want      int
		wantValid bool
	}{
		{name: "invalid date", sheet: activity.AttendanceSheet{Date: "10/03/2024", Turma: "3A", Students: []string{"ana"}, MarkedBy: "rui"}, wantValid: true},
		{name: "empty date", sheet: activity.AttendanceSheet{Turma: "3A", Students: []string{"ana"}, MarkedBy: "rui"}, wantValid: true},
		{name: "nobody selected", sheet: activity.AttendanceSheet{Date: "2024-03-10", Turma: "3A", MarkedBy: "rui"}},
		{name: "outside the class", sheet: activity.AttendanceSheet{Date: "2024-03-10", Turma: "3A", Students: []string{"caio"}, MarkedBy: "rui"}},
		{name: "two students", sheet: activity.AttendanceSheet{Date: "2024-03-10", Turma: "3A", Students: []string{"ana", "bia", "caio"}, MarkedBy: "rui"}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := env.ActivitySvc.MarkAttendance(ctx, tt.sheet)
			assert.Equal(t, tt.want, n)
			if tt.wantValid {
				assert.True(t, core.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	for uname, want := range map[string]int{"ana": 1, "bia": 1, "caio": 0} {
		usr, err := env.UserSvc.Get(ctx, user.RoleStudent, uname)
		require.NoError(t, err)
		assert.Len(t, usr.Attendance, want, uname)
	}
}

func TestService_AggregatePerformance(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	// no students, no activities
	perf, err := env.ActivitySvc.AggregatePerformance(ctx, "3A")
	require.NoError(t, err)
	assert.Empty(t, perf)

	env.CreateUser(t, user.RoleStudent, "ana", "Ana", "3A")
	env.CreateUser(t, user.RoleStudent, "bia", "Bia", "3A")

	// no matching activities
	perf, err = env.ActivitySvc.AggregatePerformance(ctx, "3A")
	require.NoError(t, err)
	require.Len(t, perf, 2)
	assert.Zero(t, perf[0].Percent)

	a1 := env.CreateActivity(t, "Lista 1", "2024-05-01", "3A")
	env.CreateActivity(t, "Lista 2", "2024-06-01", "3A")
	other := env.CreateActivity(t, "Lista B", "2024-06-01", "3B")
	for _, id := range []int{a1.ID, a1.ID, other.ID} {
		_, err := env.ActivitySvc.Submit(ctx, id, activity.NewSubmission{Student: "ana", Text: "x"})
		require.NoError(t, err)
	}

	perf, err = env.ActivitySvc.AggregatePerformance(ctx, "3A")
	require.NoError(t, err)
	assert.Equal(t, []activity.Performance{
		{Student: "ana", Name: "Ana", Percent: 50},
		{Student: "bia", Name: "Bia", Percent: 0},
	}, perf)
}

func TestService_VisibleTo(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.CreateUser(t, user.RoleStudent, "ana", "Ana", "3A")
	env.CreateUser(t, user.RoleTeacher, "rui", "Rui", "")
	env.CreateActivity(t, "Geral", "2024-05-01", "")
	env.CreateActivity(t, "Da 3A", "2024-05-01", "3A")
	env.CreateActivity(t, "Da 3B", "2024-05-01", "3B")

	tests := []struct {
		name string
		sess user.Session
		want []string
	}{
		{name: "student", sess: env.Login(t, user.RoleStudent, "ana"), want: []string{"Geral", "Da 3A"}},
		{name: "teacher", sess: env.Login(t, user.RoleTeacher, "rui"), want: []string{"Geral", "Da 3A", "Da 3B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts, err := env.ActivitySvc.VisibleTo(ctx, tt.sess)
			require.NoError(t, err)
			var titles []string
			for _, a := range acts {
				titles = append(titles, a.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestService_Dashboard(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.CreateUser(t, user.RoleStudent, "ana", "Ana", "3A")
	sess := env.Login(t, user.RoleStudent, "ana")

	deadlines := []string{"2024-09-01", "sem prazo", "2024-03-01", "2024-07-15", "2024-01-10", "2024-12-01", "2024-02-01"}
	for i, d := range deadlines {
		env.CreateActivity(t, "A"+d, d, "")
		if i == 0 {
			_, err := env.ActivitySvc.Submit(ctx, 1, activity.NewSubmission{Student: "ana", Text: "x"})
			require.NoError(t, err)
			_, err = env.ActivitySvc.Comment(ctx, 1, activity.NewComment{Author: "rui", Text: "Muito bem"})
			require.NoError(t, err)
		}
	}
	env.CreateActivity(t, "Outra turma", "2024-01-01", "3B")

	dash, err := env.ActivitySvc.Dashboard(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, dash.Pending, len(deadlines)-1)

	var upcoming []string
	for _, a := range dash.Upcoming {
		upcoming = append(upcoming, a.Deadline)
	}
	assert.Equal(t, []string{"2024-01-10", "2024-02-01", "2024-03-01", "2024-07-15", "2024-09-01"}, upcoming)
	assert.Equal(t, []activity.RecentComment{{ActivityID: 1, Activity: "A2024-09-01", Author: "rui", Text: "Muito bem"}}, dash.Comments)
}

func TestCalendar(t *testing.T) {
	acts := []activity.Activity{
		{ID: 1, Deadline: "2024-05-01"},
		{ID: 2, Deadline: "amanhã"},
		{ID: 3, Deadline: "2024-03-01"},
		{ID: 4, Deadline: "2024-05-01"},
		{ID: 5},
	}
	days := activity.Calendar(acts)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-03-01", days[0].Date)
	assert.Equal(t, "2024-05-01", days[1].Date)
	assert.Len(t, days[1].Activities, 2)
	assert.Equal(t, "", days[2].Date)
	assert.Len(t, days[2].Activities, 2)

	assert.Empty(t, activity.Calendar(nil))
}

func TestService_Attach(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	act := env.CreateActivity(t, "Lista 1", "2024-05-01", "")

	tests := []struct {
		name     string
		id       int
		filename string
		want     string
		wantErr  bool
	}{
		{name: "plain", id: act.ID, filename: "enunciado.pdf", want: "act_1_enunciado.pdf"},
		{name: "path is stripped", id: act.ID, filename: "/home/rui/../rui/lista.txt", want: "act_1_lista.txt"},
		{name: "traversal", id: act.ID, filename: "../../etc/passwd", want: "act_1_passwd"},
		{name: "no name", id: act.ID, filename: "", wantErr: true},
		{name: "unknown activity", id: 9, filename: "x.txt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := env.ActivitySvc.Attach(ctx, tt.id, tt.filename, strings.NewReader("conteúdo"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)

			rc, err := env.Files.Open(ctx, name)
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "conteúdo", string(data))
		})
	}

	got, err := env.ActivitySvc.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"act_1_enunciado.pdf", "act_1_lista.txt", "act_1_passwd"}, got.Attachments)
}
