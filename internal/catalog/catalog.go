// Package catalog declares the student-information models that are kept in
// sync between the main and portal deployments.
package catalog

import "github.com/dmitrijs2005/osissync/internal/schema"

const (
	Person           = "base.person"
	AcademicYear     = "base.academicyear"
	Student          = "base.student"
	OfferYear        = "base.offeryear"
	OfferEnrollment  = "base.offerenrollment"
	LearningUnitYear = "base.learningunityear"
)

var changed = schema.Field{Name: "changed", Type: schema.DateTime}

// Models returns fresh descriptors, leaves first.
func Models() []*schema.Model {
	return []*schema.Model{
		{
			Name:  Person,
			Table: "base_person",
			// The portal links persons to its own login accounts.
			Owner: "user",
			Fields: []schema.Field{
				{Name: "global_id", Type: schema.String},
				{Name: "first_name", Type: schema.String},
				{Name: "middle_name", Type: schema.String},
				{Name: "last_name", Type: schema.String},
				{Name: "email", Type: schema.String},
				{Name: "phone", Type: schema.String},
				{Name: "gender", Type: schema.String},
				{Name: "birth_date", Type: schema.Date},
				{Name: "employee", Type: schema.Bool},
				changed,
			},
		},
		{
			Name:  AcademicYear,
			Table: "base_academicyear",
			Fields: []schema.Field{
				{Name: "year", Type: schema.Int},
				{Name: "start_date", Type: schema.Date},
				{Name: "end_date", Type: schema.Date},
				changed,
			},
		},
		{
			Name:  Student,
			Table: "base_student",
			Fields: []schema.Field{
				{Name: "registration_id", Type: schema.String},
				{Name: "person", Type: schema.Relation, Target: Person},
				changed,
			},
		},
		{
			Name:  OfferYear,
			Table: "base_offeryear",
			Fields: []schema.Field{
				{Name: "acronym", Type: schema.String},
				{Name: "title", Type: schema.String},
				{Name: "academic_year", Type: schema.Relation, Target: AcademicYear},
				changed,
			},
		},
		{
			Name:  OfferEnrollment,
			Table: "base_offerenrollment",
			Fields: []schema.Field{
				{Name: "date_enrollment", Type: schema.Date},
				{Name: "student", Type: schema.Relation, Target: Student},
				{Name: "offer_year", Type: schema.Relation, Target: OfferYear},
				changed,
			},
		},
		{
			Name:  LearningUnitYear,
			Table: "base_learningunityear",
			Fields: []schema.Field{
				{Name: "acronym", Type: schema.String},
				{Name: "title", Type: schema.String},
				{Name: "credits", Type: schema.Float},
				{Name: "academic_year", Type: schema.Relation, Target: AcademicYear},
				changed,
			},
		},
	}
}

// NewRegistry returns a registry holding the whole catalog.
func NewRegistry() *schema.Registry {
	r := schema.NewRegistry()
	r.MustRegister(Models()...)
	return r
}
