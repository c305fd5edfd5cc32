package model

type PersonType string

const (
	PersonTypeIndividual PersonType = "PF"
	PersonTypeCompany    PersonType = "PJ"
)

type Client struct {
	BaseModel
	Name       string     `db:"name" json:"name"`
	Document   string     `db:"document" json:"document"`
	PersonType PersonType `db:"person_type" json:"person_type"`
	State      string     `db:"state" json:"state"` // UF, empty when unknown
	IsActive   bool       `db:"is_active" json:"is_active"`
}
