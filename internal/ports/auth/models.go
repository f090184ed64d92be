package auth

// Claims representa la identidad extraída del token.
// Contact es el número de contacto con el que se matchean recetas
// emitidas antes de que el paciente tuviera cuenta.
type Claims struct {
	UserID  string
	Name    string
	Contact string
	Email   string
}
