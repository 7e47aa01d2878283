package model

// Service is a wash program with its price.
type Service struct {
	ID          int64   `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Price       float64 `gorm:"not null" json:"price"`
	Description string  `gorm:"size:255" json:"description"`
}

// DefaultServices seeds an empty services table.
var DefaultServices = []Service{
	{Name: "Regular Wash", Price: 5, Description: "Standard cycle for everyday clothes"},
	{Name: "Heavy Duty Wash", Price: 8, Description: "Longer cycle for bedding and towels"},
	{Name: "Delicate Wash", Price: 7, Description: "Gentle cycle for delicate fabrics"},
	{Name: "Express Wash", Price: 10, Description: "Fast cycle when you are in a hurry"},
}
