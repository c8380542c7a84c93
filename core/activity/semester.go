package activity

import (
	"time"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/user"
)

// Classifier maps an ISO date to its semester: 1 for January to June, 2 for July to December.
// Any other result means the date could not be classified.
type Classifier interface {
	Classify(date string) int
}

// FallbackClassifier is the in-process implementation of Classifier.
type FallbackClassifier struct{}

func (FallbackClassifier) Classify(date string) int {
	t, err := time.Parse(core.ISODate, date)
	if err != nil {
		return 0
	}
	if t.Month() <= time.June {
		return 1
	}
	return 2
}

// NewClassifier returns the native classifier when requested and built in, the fallback otherwise.
func NewClassifier(native bool) Classifier {
	if native {
		if c, ok := NewNativeClassifier(); ok {
			return c
		}
	}
	return FallbackClassifier{}
}

// SemesterOf classifies date with c. When c panics or answers anything but 1 or 2 the
// in-process fallback decides; dates it cannot parse yield the first semester.
func SemesterOf(c Classifier, date string) user.Semester {
	n := classify(c, date)
	if n != 1 && n != 2 {
		n = FallbackClassifier{}.Classify(date)
	}
	if n == 2 {
		return user.SecondSemester
	}
	return user.FirstSemester
}

func classify(c Classifier, date string) (n int) {
	defer func() {
		if r := recover(); r != nil {
			n = 0
		}
	}()
	return c.Classify(date)
}
