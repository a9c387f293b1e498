package students

import "time"

// DefaultFolder is the blob folder used for profile pictures.
const DefaultFolder = "students"

// Student is a persisted student record.
type Student struct {
	ID        int64
	FirstName string
	LastName  string
	Contact   string
	Address   string
	// Picture is the blob locator, empty when the student has no picture.
	Picture   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPicture reports whether the student references a stored blob.
func (s *Student) HasPicture() bool {
	return s != nil && s.Picture != ""
}

// StudentFields holds the caller-supplied fields of a student.
type StudentFields struct {
	FirstName string
	LastName  string
	Contact   string
	Address   string
}

func (f StudentFields) applyTo(s *Student) {
	s.FirstName = f.FirstName
	s.LastName = f.LastName
	s.Contact = f.Contact
	s.Address = f.Address
}

// Image is an uploaded profile picture.
type Image struct {
	Data        []byte
	ContentType string
	FileName    string
}

// IsEmpty reports whether no picture bytes were provided.
func (i *Image) IsEmpty() bool {
	return i == nil || len(i.Data) == 0
}
