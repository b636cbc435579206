package user

// Session is the operator context of one console or API interaction. The
// current user is a reference to an entity owned by the Registry.
type Session struct {
	current User
}

func NewSession() *Session {
	return &Session{}
}

// SetCurrentUser replaces the logged-in user. Passing nil logs out.
func (s *Session) SetCurrentUser(u User) {
	s.current = u
}

// CurrentUser returns the logged-in user, if any.
func (s *Session) CurrentUser() (User, bool) {
	return s.current, s.current != nil
}

// Logout clears the current user.
func (s *Session) Logout() {
	s.current = nil
}
