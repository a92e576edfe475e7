package email

// Email представляет структуру email сообщения
type Email struct {
	To       []string
	Cc       []string
	Subject  string
	Body     string
	HTMLBody string
}

// TemplateData представляет данные для шаблонов писем
type TemplateData map[string]interface{}

// Имена встроенных шаблонов
const (
	TemplateOTP           = "otp"
	TemplateOperatorAlert = "operator_alert"
	TemplatePurchased     = "subscription_purchased"
	TemplateRefund        = "refund_required"
)
