package dto

type OrderFilters struct {
	Status   string
	ClientID string
	Page     int
	PageSize int
}
