package echoapi

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core/activity"
	"github.com/bitdevs/estudos/core/user"
	"github.com/bitdevs/estudos/storage/attachments"
)

const attachmentFormField = "file"

type activityApi struct {
	svc    *activity.Service
	usrSvc *user.Service
	files  attachments.Driver
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *activity.Service, usrSvc *user.Service, files attachments.Driver) {
	api := activityApi{svc: svc, usrSvc: usrSvc, files: files}

	g.GET("/dashboard", api.dashboard, jwt)
	g.GET("/calendar", api.calendar, jwt)

	ag := g.Group("/activities", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, staffMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", api.visibleActivityMiddleware)
	dg.GET("", api.retrieve)
	dg.POST("/submissions", api.submit, studentMiddleware())
	dg.POST("/comments", api.comment)
	dg.POST("/grades", api.grade, staffMiddleware())
	dg.POST("/attachments", api.attach, staffMiddleware())
	dg.GET("/attachments/:name", api.download)
}

// visibleActivityMiddleware loads the :id activity into the context, answering 404 when the
// activity does not exist or is not targeted at the session.
func (api *activityApi) visibleActivityMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := strconv.Atoi(ctx.Param("id"))
		if err != nil {
			return errHttpNotFound
		}
		sess, err := getContextSession(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context session")
		}

		act, err := api.svc.Get(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding activity")
		}
		if !sess.Role.IsStaff() && !activity.MatchesTarget(act, sess) {
			return errHttpNotFound
		}
		ctx.Set("object", act)
		return next(ctx)
	}
}

func contextActivity(ctx echo.Context) (activity.Activity, error) {
	act, ok := ctx.Get("object").(activity.Activity)
	if !ok {
		return activity.Activity{}, errors.New("activity not found in echo.Context")
	}
	return act, nil
}

// Handlers

func (api *activityApi) query(ctx echo.Context) error {
	sess, err := getContextSession(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	acts, err := api.svc.VisibleTo(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	if acts == nil {
		acts = []activity.Activity{}
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (api *activityApi) create(ctx echo.Context) error {
	var data activity.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	act, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating activity")
	}
	return ctx.JSON(http.StatusCreated, act)
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	act, err := contextActivity(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *activityApi) submit(ctx echo.Context) error {
	act, err := contextActivity(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data TextRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TextRequest")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), act.ID, activity.NewSubmission{Student: sess.Username, Text: data.Text})
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *activityApi) comment(ctx echo.Context) error {
	act, err := contextActivity(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data TextRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TextRequest")
	}

	c, err := api.svc.Comment(ctx.Request().Context(), act.ID, activity.NewComment{Author: sess.Username, Text: data.Text})
	if err != nil {
		return errors.Wrap(err, "commenting")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *activityApi) grade(ctx echo.Context) error {
	act, err := contextActivity(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data activity.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	data.Grader = sess.Username

	graded, err := api.svc.Grade(ctx.Request().Context(), act.ID, data)
	if err != nil {
		return errors.Wrap(err, "grading")
	}
	return ctx.JSON(http.StatusOK, graded)
}

func (api *activityApi) attach(ctx echo.Context) error {
	act, err := contextActivity(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile(attachmentFormField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{attachmentFormField: "this field is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	name, err := api.svc.Attach(ctx.Request().Context(), act.ID, fh.Filename, src)
	if err != nil {
		return errors.Wrap(err, "attaching file")
	}
	return ctx.JSON(http.StatusCreated, AttachmentResponse{Name: name})
}

// download streams an attachment listed on the activity.
func (api *activityApi) download(ctx echo.Context) error {
	act, err := contextActivity(ctx)
	if err != nil {
		return err
	}
	if api.files == nil {
		return errAttachmentsDisabled
	}
	name := ctx.Param("name")
	var listed bool
	for _, a := range act.Attachments {
		if a == name {
			listed = true
			break
		}
	}
	if !listed {
		return errHttpNotFound
	}

	rc, err := api.files.Open(ctx.Request().Context(), name)
	if err != nil {
		return errors.Wrap(err, "opening attachment")
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return ctx.Stream(http.StatusOK, ct, rc)
}

func (api *activityApi) dashboard(ctx echo.Context) error {
	sess, err := getContextSession(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	dash, err := api.svc.Dashboard(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *activityApi) calendar(ctx echo.Context) error {
	sess, err := getContextSession(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	acts, err := api.svc.VisibleTo(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return ctx.JSON(http.StatusOK, activity.Calendar(acts))
}

type (
	TextRequest struct {
		Text string `json:"text"`
	}

	AttachmentResponse struct {
		Name string `json:"name"`
	}
)
