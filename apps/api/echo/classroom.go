package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bitdevs/estudos/core/activity"
	"github.com/bitdevs/estudos/core/user"
)

// classApi serves the per-class (turma) staff tools.
type classApi struct {
	svc    *activity.Service
	usrSvc *user.Service
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *activity.Service, usrSvc *user.Service) {
	api := classApi{svc: svc, usrSvc: usrSvc}

	cg := g.Group("/classes/:turma", jwt, staffMiddleware())
	cg.GET("/students", api.students)
	cg.POST("/attendance", api.attendance)
	cg.GET("/performance", api.performance)
	cg.POST("/grades", api.grades)
}

func (api *classApi) students(ctx echo.Context) error {
	roster, err := api.usrSvc.Roster(ctx.Request().Context(), ctx.Param("turma"))
	if err != nil {
		return errors.Wrap(err, "loading roster")
	}
	if roster == nil {
		roster = []user.Session{}
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *classApi) attendance(ctx echo.Context) error {
	sess, err := getContextSession(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data AttendanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceRequest")
	}

	n, err := api.svc.MarkAttendance(ctx.Request().Context(), activity.AttendanceSheet{
		Date:     data.Date,
		Turma:    ctx.Param("turma"),
		Students: data.Students,
		MarkedBy: sess.Username,
	})
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, UpdatedResponse{Updated: n})
}

func (api *classApi) performance(ctx echo.Context) error {
	perf, err := api.svc.AggregatePerformance(ctx.Request().Context(), ctx.Param("turma"))
	if err != nil {
		return errors.Wrap(err, "aggregating performance")
	}
	return ctx.JSON(http.StatusOK, perf)
}

func (api *classApi) grades(ctx echo.Context) error {
	var data GradesRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradesRequest")
	}
	sem, _ := user.ParseSemester(data.Semester) // 0 fails the grade sheet validation

	n, err := api.usrSvc.AssignGrades(ctx.Request().Context(), user.GradeSheet{
		Turma:    ctx.Param("turma"),
		Subject:  data.Subject,
		Semester: sem,
		Scores:   data.Scores,
	})
	if err != nil {
		return errors.Wrap(err, "assigning grades")
	}
	return ctx.JSON(http.StatusOK, UpdatedResponse{Updated: n})
}

type (
	AttendanceRequest struct {
		Date     string   `json:"date"`
		Students []string `json:"students"`
	}

	// GradesRequest assigns one subject's scores for a semester ("1", "2", "sem1" or "sem2").
	// Students with a null score are left as they are.
	GradesRequest struct {
		Subject  string                  `json:"subject"`
		Semester string                  `json:"semester"`
		Scores   map[string]null.Float64 `json:"scores"`
	}

	UpdatedResponse struct {
		Updated int `json:"updated"`
	}
)
