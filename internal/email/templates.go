package email

import (
	"fmt"
	"html/template"
	"strings"
	"sync"
)

var builtinTemplates = map[string]string{
	TemplateOTP: `<p>Hello {{.Name}},</p>
<p>Your verification code is <b>{{.Code}}</b>. It expires in {{.Minutes}} minutes.</p>`,
	TemplateOperatorAlert: `<p>Subscription <b>{{.SubscriptionID}}</b> of user {{.UserID}} is in an inconsistent state.</p>
<p>Operation: {{.Operation}}<br>Reason: {{.Reason}}</p>
<p>The record was left untouched and needs manual repair.</p>`,
	TemplatePurchased: `<p>Hello {{.Name}},</p>
<p>Your {{.Plan}} subscription is active from {{.StartDate}} to {{.EndDate}}.</p>`,
	TemplateRefund: `<p>Order <b>{{.OrderID}}</b> (payment {{.PaymentID}}) of user {{.UserID}} was paid while subscription {{.SubscriptionID}} is still running.</p>
<p>Amount: {{.Amount}} {{.Currency}}. No subscription was granted, the payment needs a manual refund.</p>`,
}

// TemplateManager реализует TemplateRenderer для управления шаблонами email
type TemplateManager struct {
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewTemplateManager создает менеджер с встроенными шаблонами
func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{
		templates: make(map[string]*template.Template),
	}
	for name, body := range builtinTemplates {
		// встроенные шаблоны статичны, ошибка парсинга - баг
		if err := tm.AddTemplate(name, body); err != nil {
			panic(err)
		}
	}
	return tm
}

// Render рендерит шаблон с данными
func (tm *TemplateManager) Render(templateName string, data TemplateData) (string, error) {
	tm.mutex.RLock()
	tpl, exists := tm.templates[templateName]
	tm.mutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// AddTemplate добавляет шаблон в менеджер
func (tm *TemplateManager) AddTemplate(name string, templateStr string) error {
	tpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	tm.mutex.Lock()
	tm.templates[name] = tpl
	tm.mutex.Unlock()

	return nil
}
