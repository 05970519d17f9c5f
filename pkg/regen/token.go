package regen

// Token identifies one generation request. The zero Token is never current.
type Token struct {
	seq uint64
}

// IsZero reports whether t was never issued
func (t Token) IsZero() bool {
	return t.seq == 0
}

// tokenSource hands out monotonically increasing tokens. At most one token is
// current; results carrying any other token are stale.
type tokenSource struct {
	last    uint64
	current Token
}

// Issue makes a new token current, invalidating the previous one
func (s *tokenSource) Issue() Token {
	s.last++
	s.current = Token{seq: s.last}
	return s.current
}

// Revoke leaves no token current
func (s *tokenSource) Revoke() {
	s.current = Token{}
}

// Current reports whether t is the live token
func (s *tokenSource) Current(t Token) bool {
	return !t.IsZero() && t == s.current
}
