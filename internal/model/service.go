package model

import "time"

// Category groups catalog services.
type Category string

const (
	CategoryGST Category = "gst"
	CategoryITR Category = "itr"
	CategoryROC Category = "roc"
)

func (c Category) Valid() bool {
	return c == CategoryGST || c == CategoryITR || c == CategoryROC
}

// FormField describes one input of a service application form.
// Type "file" fields are satisfied by an attachment uploaded under the same name.
type FormField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Service is a purchasable filing offered in the catalog. Price is in paise.
type Service struct {
	ID                string      `json:"id"`
	Code              string      `json:"code"`
	Name              string      `json:"name"`
	Category          Category    `json:"category"`
	Description       string      `json:"description"`
	Price             int64       `json:"price"`
	RequiredDocuments []string    `json:"required_documents"`
	FormFields        []FormField `json:"form_fields"`
	Active            bool        `json:"active"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
