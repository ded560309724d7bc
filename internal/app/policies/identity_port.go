package policies

// Identity supplies the signed-in user. An empty id means no user is
// signed in, which is a hard precondition failure for sends and deletes.
type Identity interface {
	CurrentUserID() string
}

// StaticIdentity is the trivial Identity for tests and single-user demos.
type StaticIdentity string

func (s StaticIdentity) CurrentUserID() string { return string(s) }
