package core

import (
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
)

// StudentsCollection is the default collection for student documents.
const StudentsCollection = "students"

// Stored field names.
const (
	FieldClassName       = "class_name"
	FieldName            = "name"
	FieldFatherName      = "father_name"
	FieldMotherName      = "mother_name"
	FieldAddress         = "address"
	FieldMobile          = "mobile"
	FieldAlternateMobile = "alternate_mobile"
	FieldCollegeName     = "college_name"
	FieldCreatedAt       = "created_at"
	FieldUpdatedAt       = "updated_at"
)

// SearchFields are matched by a free-text search.
var SearchFields = []string{FieldName, FieldMobile, FieldCollegeName}

// Fields is a partial student document, keyed by stored field name.
type Fields map[string]any

// Student is one stored record. Every field except ID is optional.
type Student struct {
	ID              string     `json:"id"`
	ClassName       string     `json:"class_name,omitempty"`
	Name            string     `json:"name,omitempty"`
	FatherName      string     `json:"father_name,omitempty"`
	MotherName      string     `json:"mother_name,omitempty"`
	Address         string     `json:"address,omitempty"`
	Mobile          string     `json:"mobile,omitempty"`
	AlternateMobile string     `json:"alternate_mobile,omitempty"`
	CollegeName     string     `json:"college_name,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

func studentFromDocument(doc docstore.Document) Student {
	s := Student{
		ID:              doc.String(docstore.IDField),
		ClassName:       doc.String(FieldClassName),
		Name:            doc.String(FieldName),
		FatherName:      doc.String(FieldFatherName),
		MotherName:      doc.String(FieldMotherName),
		Address:         doc.String(FieldAddress),
		Mobile:          doc.String(FieldMobile),
		AlternateMobile: doc.String(FieldAlternateMobile),
		CollegeName:     doc.String(FieldCollegeName),
	}
	if t, ok := doc.Time(FieldCreatedAt); ok {
		s.CreatedAt = &t
	}
	if t, ok := doc.Time(FieldUpdatedAt); ok {
		s.UpdatedAt = &t
	}
	return s
}

// StudentInput is the request body for creating or editing a student.
// Nil fields are left out of the write.
type StudentInput struct {
	ClassName       *string `json:"class_name"`
	Name            *string `json:"name"`
	FatherName      *string `json:"father_name"`
	MotherName      *string `json:"mother_name"`
	Address         *string `json:"address"`
	Mobile          *string `json:"mobile"`
	AlternateMobile *string `json:"alternate_mobile"`
	CollegeName     *string `json:"college_name"`
}

// Fields returns the supplied fields only.
func (in StudentInput) Fields() Fields {
	f := make(Fields)
	set := func(key string, v *string) {
		if v != nil {
			f[key] = *v
		}
	}
	set(FieldClassName, in.ClassName)
	set(FieldName, in.Name)
	set(FieldFatherName, in.FatherName)
	set(FieldMotherName, in.MotherName)
	set(FieldAddress, in.Address)
	set(FieldMobile, in.Mobile)
	set(FieldAlternateMobile, in.AlternateMobile)
	set(FieldCollegeName, in.CollegeName)
	return f
}

// CreateFields returns the supplied fields stamped with created_at.
func (in StudentInput) CreateFields(now time.Time) Fields {
	f := in.Fields()
	f[FieldCreatedAt] = now.UTC()
	return f
}
