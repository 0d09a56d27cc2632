package domain

import "github.com/shopspring/decimal"

// ChargeRequest - то, что оркестратор просит у платежного провайдера.
type ChargeRequest struct {
	PurchaseID    string
	Amount        decimal.Decimal
	Currency      string
	Mode          CheckoutMode
	CourseTitle   string
	CustomerEmail string
	Origin        string // база для URL возврата после оплаты на стороне провайдера
}

// ChargeIntent: ClientHandle - client secret (intent) или URL страницы оплаты (session).
type ChargeIntent struct {
	ProviderRef  string
	ClientHandle string
	State        IntentState
}

// IntentState - состояние intent/session у провайдера.
type IntentState int

const (
	// Ждет оплаты, ClientHandle можно отдавать клиенту
	IntentOpen IntentState = iota
	// Оплачен или в процессе оплаты, исход придет вебхуком
	IntentPaid
	// Отменен или истек, оплатить уже нельзя
	IntentClosed
)
