package activity

import (
	"context"

	"github.com/bitdevs/estudos/core"
)

// MarkAttendance records an absence on sheet.Date for each selected student of sheet.Turma.
// It returns the number of students updated; nothing is written for an empty selection.
func (svc *Service) MarkAttendance(ctx context.Context, sheet AttendanceSheet) (int, error) {
	sheet.Date = core.CleanString(sheet.Date)
	sheet.Turma = core.CleanString(sheet.Turma)
	if _, ok := core.ParseDate(sheet.Date); !ok {
		return 0, core.NewFieldError(ErrInvalidDate, "date")
	}
	if len(sheet.Students) == 0 {
		return 0, nil
	}
	if err := svc.validate.Struct(sheet); err != nil {
		return 0, err
	}
	return svc.students.MarkAbsent(ctx, sheet.Turma, sheet.Students, sheet.Date, sheet.MarkedBy)
}
