package models

// Major groups courses and students.
type Major struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Course is taught to students of one major in a given year.
type Course struct {
	ID      string  `db:"id" json:"id"`
	Name    string  `db:"name" json:"name"`
	Year    int     `db:"year" json:"year"`
	MajorID *string `db:"major_id" json:"major,omitempty"`
}

// Room is a physical location events are held in.
type Room struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// StudentProfile maps a student user to the major and year they study in.
type StudentProfile struct {
	UserID    string  `db:"user_id" json:"user"`
	Name      string  `db:"name" json:"name"`
	Email     string  `db:"email" json:"email"`
	StudentID string  `db:"student_id" json:"student_id"`
	MajorID   *string `db:"major_id" json:"major,omitempty"`
	Year      int     `db:"year" json:"year"`
}
