package models

// StudentDashboard is the student's home screen.
type StudentDashboard struct {
	Enrollments      int `json:"enrollments"`
	CompletedCourses int `json:"completed_courses"`
	Certificates     int `json:"certificates"`
	AttemptsTaken    int `json:"attempts_taken"`
	AttemptsPassed   int `json:"attempts_passed"`
	Applications     int `json:"applications"`
}

// EmployerDashboard summarizes an employer's postings.
type EmployerDashboard struct {
	Internships         int `json:"internships"`
	Applications        int `json:"applications"`
	PendingApplications int `json:"pending_applications"`
	Accepted            int `json:"accepted"`
}

// PlatformDashboard is shared by admins and colleges; revenue is admin-only.
type PlatformDashboard struct {
	Students    int      `json:"students"`
	Courses     int      `json:"courses"`
	Enrollments int      `json:"enrollments"`
	Completions int      `json:"completions"`
	Revenue     *float64 `json:"revenue,omitempty"`
}

// Dashboard wraps whichever role view applies.
type Dashboard struct {
	Role     string             `json:"role"`
	Student  *StudentDashboard  `json:"student,omitempty"`
	Employer *EmployerDashboard `json:"employer,omitempty"`
	Platform *PlatformDashboard `json:"platform,omitempty"`
}
