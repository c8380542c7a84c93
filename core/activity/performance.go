package activity

import (
	"context"
)

// AggregatePerformance returns, for each student of turma in roster order, the percentage of the
// activities targeted at turma that the student submitted at least once.
func (svc *Service) AggregatePerformance(ctx context.Context, turma string) ([]Performance, error) {
	roster, err := svc.students.Roster(ctx, turma)
	if err != nil {
		return nil, err
	}
	acts, err := svc.repo.QueryActivities(ctx)
	if err != nil {
		return nil, err
	}

	var classActs []Activity
	for _, act := range acts {
		if act.Target != nil && act.Target.Turma.Valid && act.Target.Turma.String == turma {
			classActs = append(classActs, act)
		}
	}

	perf := make([]Performance, 0, len(roster))
	for _, st := range roster {
		p := Performance{Student: st.Username, Name: st.DisplayName()}
		if total := len(classActs); total > 0 {
			var submitted int
			for _, act := range classActs {
				if act.SubmittedBy(st.Username) {
					submitted++
				}
			}
			p.Percent = float64(submitted) / float64(total) * 100
		}
		perf = append(perf, p)
	}
	return perf, nil
}
