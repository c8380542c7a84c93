package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/volatiletech/null/v8"
)

// Semester is the half of the academic year a grade belongs to.
type Semester int

const (
	FirstSemester  Semester = 1
	SecondSemester Semester = 2
)

func (s Semester) Valid() bool { return s == FirstSemester || s == SecondSemester }

// Key is the gradebook key of s. Anything but SecondSemester files under sem1.
func (s Semester) Key() string {
	if s == SecondSemester {
		return "sem2"
	}
	return "sem1"
}

func (s Semester) String() string { return s.Key() }

// ParseSemester accepts "1", "2", "sem1" and "sem2".
func ParseSemester(s string) (Semester, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "sem1":
		return FirstSemester, nil
	case "2", "sem2":
		return SecondSemester, nil
	}
	return 0, fmt.Errorf("invalid semester %q", s)
}

// SubjectGrades holds the two semester scores of one subject; either may be unset.
type SubjectGrades struct {
	Sem1 null.Float64 `json:"sem1"`
	Sem2 null.Float64 `json:"sem2"`
}

func (sg *SubjectGrades) get(sem Semester) null.Float64 {
	if sem == SecondSemester {
		return sg.Sem2
	}
	return sg.Sem1
}

func (sg *SubjectGrades) set(sem Semester, score float64) {
	if sem == SecondSemester {
		sg.Sem2 = null.Float64From(score)
		return
	}
	sg.Sem1 = null.Float64From(score)
}

// UnmarshalJSON never fails: scores that are not numbers become null.
func (sg *SubjectGrades) UnmarshalJSON(data []byte) error {
	*sg = SubjectGrades{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	sg.Sem1 = lenientScore(raw["sem1"])
	sg.Sem2 = lenientScore(raw["sem2"])
	return nil
}

func lenientScore(data json.RawMessage) null.Float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return null.Float64{}
	}
	var f float64
	if json.Unmarshal(data, &f) != nil {
		return null.Float64{}
	}
	return null.Float64From(f)
}

// Gradebook maps subject names to their semester scores. Subjects are created on first write.
type Gradebook map[string]*SubjectGrades

// Track returns the entry of subject, creating an empty one if needed.
func (g *Gradebook) Track(subject string) *SubjectGrades {
	if *g == nil {
		*g = make(Gradebook)
	}
	sg, ok := (*g)[subject]
	if !ok || sg == nil {
		sg = &SubjectGrades{}
		(*g)[subject] = sg
	}
	return sg
}

func (g *Gradebook) Set(subject string, sem Semester, score float64) {
	g.Track(subject).set(sem, score)
}

// Lookup returns the score of subject for sem. tracked is false when the subject has no entry.
func (g Gradebook) Lookup(subject string, sem Semester) (score null.Float64, tracked bool) {
	sg, ok := g[subject]
	if !ok || sg == nil {
		return null.Float64{}, false
	}
	return sg.get(sem), true
}

// UnmarshalJSON never fails: anything but an object yields an empty gradebook.
func (g *Gradebook) UnmarshalJSON(data []byte) error {
	var raw map[string]*SubjectGrades
	if err := json.Unmarshal(data, &raw); err != nil {
		*g = make(Gradebook)
		return nil
	}
	book := make(Gradebook, len(raw))
	for subject, sg := range raw {
		if sg == nil {
			sg = &SubjectGrades{}
		}
		book[subject] = sg
	}
	*g = book
	return nil
}

// MarshalJSON writes an empty object for a nil gradebook.
func (g Gradebook) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]*SubjectGrades(g))
}

func (g Gradebook) Clone() Gradebook {
	c := make(Gradebook, len(g))
	for subject, sg := range g {
		if sg == nil {
			continue
		}
		cp := *sg
		c[subject] = &cp
	}
	return c
}
