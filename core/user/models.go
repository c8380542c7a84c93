package user

import (
	"encoding/json"

	"github.com/volatiletech/null/v8"

	"github.com/bitdevs/estudos/core"
)

// Role partitions the accounts; every role is stored in its own collection.
type Role string

const (
	RoleStudent Role = "Aluno"
	RoleTeacher Role = "Professor"
	RoleStaff   Role = "Administrativo"
)

var AllRoles = []Role{RoleStudent, RoleTeacher, RoleStaff}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) IsStudent() bool { return r == RoleStudent }

// IsStaff reports whether the role can create and grade activities.
func (r Role) IsStaff() bool { return r == RoleTeacher || r == RoleStaff }

// AttendanceStatus values
const (
	StatusAbsent = "absent"
)

type AttendanceEntry struct {
	Date     string `json:"date"`
	Status   string `json:"status"`
	MarkedBy string `json:"marked_by"`
}

// User is an account as stored: username and grades are plaintext, every other field is an encrypted token.
type User struct {
	Username   string            `json:"username"`
	Password   null.String       `json:"password"`
	Name       null.String       `json:"name"`
	Age        null.String       `json:"age"`
	Email      null.String       `json:"email"`
	CPF        null.String       `json:"cpf"`
	Curso      null.String       `json:"curso"`
	Turma      null.String       `json:"turma"`
	Semestre   null.String       `json:"semestre"`
	Periodo    null.String       `json:"periodo"`
	Grades     Gradebook         `json:"grades"`
	Attendance []AttendanceEntry `json:"attendance,omitempty"`
}

// UnmarshalJSON accepts numbers and booleans in the username and personal fields, kept as their text.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	keys := append([]string{"username"}, personalKeys...)
	if err := json.Unmarshal(core.StringifyScalars(data, keys...), &p); err != nil {
		return err
	}
	*u = User(p)
	return nil
}

var personalKeys = []string{"password", "name", "age", "email", "cpf", "curso", "turma", "semestre", "periodo"}

// personalFields lists the encrypted fields of u, keyed by their JSON name.
func (u *User) personalFields() map[string]*null.String {
	return map[string]*null.String{
		"password": &u.Password,
		"name":     &u.Name,
		"age":      &u.Age,
		"email":    &u.Email,
		"cpf":      &u.CPF,
		"curso":    &u.Curso,
		"turma":    &u.Turma,
		"semestre": &u.Semestre,
		"periodo":  &u.Periodo,
	}
}

// Preferences are the per-session accessibility toggles.
type Preferences struct {
	Narration    bool `json:"narration"`
	HighContrast bool `json:"high_contrast"`
	LargeText    bool `json:"large_text"`
	FocusMode    bool `json:"focus_mode"`
}

func PreferencesFrom(conf core.AccessibilityConfig) Preferences {
	return Preferences(conf)
}

// Session is the decrypted working copy of a User. It is never persisted.
type Session struct {
	Role        Role              `json:"role"`
	Username    string            `json:"username"`
	Name        string            `json:"name"`
	Age         string            `json:"age"`
	Email       string            `json:"email"`
	CPF         string            `json:"cpf"`
	Curso       string            `json:"curso"`
	Turma       string            `json:"turma"`
	Semestre    string            `json:"semestre"`
	Periodo     string            `json:"periodo"`
	Grades      Gradebook         `json:"grades"`
	Attendance  []AttendanceEntry `json:"attendance"`
	Preferences Preferences       `json:"preferences"`

	// Undecryptable names the fields that still hold a raw token.
	Undecryptable []string `json:"undecryptable,omitempty"`
}

// DisplayName falls back to the username when the name is unknown.
func (s Session) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Username
}

// Attribute returns one of the targeting attributes: curso, turma, semestre or periodo.
func (s Session) Attribute(name string) (string, bool) {
	var v string
	switch name {
	case "curso":
		v = s.Curso
	case "turma":
		v = s.Turma
	case "semestre":
		v = s.Semestre
	case "periodo":
		v = s.Periodo
	default:
		return "", false
	}
	return v, v != ""
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Role     Role   `json:"role" validate:"required,oneof=Aluno Professor Administrativo"`
	Username string `json:"username" validate:"required,notblank,username"`
	Password string `json:"password" validate:"required,notblank"`
	Name     string `json:"name" validate:"required,notblank"`
	Age      string `json:"age"`
	Email    string `json:"email" validate:"omitempty,email"`
	CPF      string `json:"cpf"`
	Curso    string `json:"curso"`
	Turma    string `json:"turma"`
	Semestre string `json:"semestre"`
	Periodo  string `json:"periodo"`
}

func (nu *NewUser) clean() {
	nu.Username = core.CleanString(nu.Username)
	nu.Password = core.CleanString(nu.Password)
	nu.Name = core.CleanString(nu.Name)
	nu.Age = core.CleanString(nu.Age)
	nu.Email = core.CleanString(nu.Email)
	nu.CPF = core.CleanString(nu.CPF)
	nu.Curso = core.CleanString(nu.Curso)
	nu.Turma = core.CleanString(nu.Turma)
	nu.Semestre = core.CleanString(nu.Semestre)
	nu.Periodo = core.CleanString(nu.Periodo)
}
