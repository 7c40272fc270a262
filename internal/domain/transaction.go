package domain

import "time"

// Transaction is one confirmed mining-package purchase. Records are
// append-only: there is no update or delete path.
type Transaction struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"userId"`
	PackageID  int       `json:"packageId"`
	HashRate   float64   `json:"hashRate"`
	PriceTON   float64   `json:"priceTON"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
	ReceiptRef string    `json:"receiptRef"`
	Validity   string    `json:"validity"`
}
