package model

// Authorizer decides whether an input's authorization token unlocks the referenced output.
type Authorizer interface {
	Authorize(publicKey, signature []byte) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(publicKey, signature []byte) bool

func (f AuthorizerFunc) Authorize(publicKey, signature []byte) bool {
	return f(publicKey, signature)
}

// AlwaysAuthorize accepts every token. It is a placeholder with no security value: any input
// referencing an existing output can spend it.
var AlwaysAuthorize Authorizer = AuthorizerFunc(func(_, _ []byte) bool { return true })
