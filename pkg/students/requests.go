package students

// CreateStudentRequest contains parameters for creating a student
type CreateStudentRequest struct {
	Fields StudentFields
	// Image is optional; nil or empty means no picture.
	Image *Image
}

// UpdateStudentRequest contains parameters for updating a student
type UpdateStudentRequest struct {
	ID     int64
	Fields StudentFields
	// Image replaces the current picture when non-empty. When empty the
	// existing picture is kept.
	Image *Image
}
