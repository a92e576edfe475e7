package email

import (
	"sync"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
)

// MockProvider ничего не отправляет: пишет письмо в лог и запоминает его.
// Используется для тестов и локальной разработки.
type MockProvider struct {
	mu       sync.Mutex
	renderer TemplateRenderer
	sent     []Email
}

func NewMockProvider() *MockProvider {
	return &MockProvider{renderer: NewTemplateManager()}
}

func (m *MockProvider) Send(email *Email) error {
	m.mu.Lock()
	m.sent = append(m.sent, *email)
	m.mu.Unlock()

	logger.Debug("mock email", "to", email.To, "subject", email.Subject)
	return nil
}

func (m *MockProvider) SendTemplate(to []string, subject string, templateName string, data TemplateData) error {
	body, err := m.renderer.Render(templateName, data)
	if err != nil {
		return err
	}
	return m.Send(&Email{To: to, Subject: subject, HTMLBody: body})
}

func (m *MockProvider) Validate() error { return nil }
func (m *MockProvider) Close() error    { return nil }

// Sent возвращает копию отправленных писем
func (m *MockProvider) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}
