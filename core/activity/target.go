package activity

// Attributes is implemented by user views exposing the targeting attributes.
type Attributes interface {
	// Attribute returns the value of curso, turma, semestre or periodo; ok is false when unset.
	Attribute(name string) (value string, ok bool)
}

// MatchesTarget reports whether act applies to u. Every set dimension of the target
// must equal the corresponding attribute of u; a missing attribute never matches.
func MatchesTarget(act Activity, u Attributes) bool {
	for name, want := range act.Target.dimensions() {
		got, ok := u.Attribute(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}
