package auth

// Identity supplies the subject and bearer credential for outbound calls.
type Identity interface {
	SubjectID() string
	Credential() string
}

// StaticIdentity is an Identity with fixed values, typically filled in from a
// login response.
type StaticIdentity struct {
	Subject string
	Token   string
}

func (s StaticIdentity) SubjectID() string  { return s.Subject }
func (s StaticIdentity) Credential() string { return s.Token }
