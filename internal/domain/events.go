package domain

// PaymentEventKind - закрытый набор исходов, которые понимает оркестратор.
type PaymentEventKind int

const (
	PaymentIgnored PaymentEventKind = iota
	PaymentSucceeded
	PaymentFailed
)

func (k PaymentEventKind) String() string {
	switch k {
	case PaymentSucceeded:
		return "succeeded"
	case PaymentFailed:
		return "failed"
	}
	return "ignored"
}

// PaymentEvent - проверенный и разобранный колбэк платежного провайдера.
// PurchaseID может быть пустым: не каждое событие несет наши метаданные.
type PaymentEvent struct {
	ID          string
	Type        string
	Kind        PaymentEventKind
	PurchaseID  string
	ProviderRef string
	Payload     []byte
}

type IdentityEventKind int

const (
	IdentityIgnored IdentityEventKind = iota
	IdentityUserCreated
	IdentityUserUpdated
	IdentityUserDeleted
)

func (k IdentityEventKind) String() string {
	switch k {
	case IdentityUserCreated:
		return "user.created"
	case IdentityUserUpdated:
		return "user.updated"
	case IdentityUserDeleted:
		return "user.deleted"
	}
	return "ignored"
}

// IdentityEvent - проверенный колбэк провайдера идентификации.
// Для user.deleted заполнен только User.ID.
type IdentityEvent struct {
	ID   string
	Type string
	Kind IdentityEventKind
	User User
}
