package service

// Actor represents the authenticated user performing a grading action.
type Actor struct {
	ID   uint
	Role string
}
