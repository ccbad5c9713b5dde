package model

type UserRole string

const (
	Admin      UserRole = "admin"
	Instructor UserRole = "instructor"
	Learner    UserRole = "learner"
)
