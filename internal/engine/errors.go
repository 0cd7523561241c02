package engine

// ValidationError marks input the caller can fix (empty title, overlong
// description, bad role).
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// ForbiddenError marks an operation on a resource the caller does not own,
// where revealing existence is acceptable (conversations).
type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string { return e.Msg }

// ConflictError marks a uniqueness violation (duplicate signup email).
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }
