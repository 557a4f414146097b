package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/email"
	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/internal/timegrid"
)

const (
	defaultConfirmation = "¡Hola {{studentName}}! Tu clase de {{lessonType}} está confirmada para el {{date}} a las {{time}}. Link: {{meetUrl}}"
	defaultReminder24h  = "¡Hola {{studentName}}! Te recordamos tu clase de mañana a las {{time}}. Link: {{meetUrl}}"
	defaultReminder1h   = "¡{{studentName}}, tu clase empieza en 1 hora! Link: {{meetUrl}}"
	defaultChase        = "Hola {{studentName}}, tienes un pago pendiente de {{amount}} por tu clase del {{date}}."
	defaultFollowUp     = "¡Hola {{studentName}}! ¿Cómo te fue en la clase de hoy? Reserva tu próxima clase: {{bookingUrl}}"
	defaultPackReceipt  = "¡Hola {{studentName}}! Tu paquete de {{lessonType}} está activo. Reserva tus clases: {{bookingUrl}}"
	defaultWelcome      = "¡Hola {{studentName}}! Gracias por tu interés en {{tenantName}}. Pronto te contactaremos para agendar tu primera clase."
)

// EmailProcessor renders and sends the transactional emails for the email
// and welcome queues.
type EmailProcessor struct {
	tenants     *repository.TenantRepository
	lessons     *repository.LessonRepository
	students    *repository.StudentRepository
	lessonTypes *repository.LessonTypeRepository
	packs       *repository.PackRepository
	sender      email.Sender
	webBaseURL  string
	logger      *zap.Logger
}

func NewEmailProcessor(
	tenants *repository.TenantRepository,
	lessons *repository.LessonRepository,
	students *repository.StudentRepository,
	lessonTypes *repository.LessonTypeRepository,
	packs *repository.PackRepository,
	sender email.Sender,
	webBaseURL string,
	logger *zap.Logger,
) *EmailProcessor {
	return &EmailProcessor{
		tenants:     tenants,
		lessons:     lessons,
		students:    students,
		lessonTypes: lessonTypes,
		packs:       packs,
		sender:      sender,
		webBaseURL:  webBaseURL,
		logger:      logger,
	}
}

func (p *EmailProcessor) Handle(ctx context.Context, jobName string, body []byte) (any, error) {
	switch jobName {
	case queue.JobSendPackReceipt:
		return p.sendPackReceipt(ctx, body)
	case queue.JobSendWelcome:
		return p.sendWelcome(ctx, body)
	default:
		return p.sendLessonEmail(ctx, jobName, body)
	}
}

func (p *EmailProcessor) sendLessonEmail(ctx context.Context, jobName string, body []byte) (any, error) {
	var payload queue.LessonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	tenant, err := p.tenants.GetByID(ctx, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	lesson, err := p.lessons.GetByID(ctx, payload.LessonID, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	studentName, studentEmail, err := p.students.ContactByStudentID(ctx, lesson.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student contact: %w", err)
	}
	if studentEmail == "" {
		p.logger.Warn("student has no email, skipping",
			zap.String("student_id", lesson.StudentID))
		return map[string]any{"skipped": true, "reason": "no email"}, nil
	}
	lessonType, err := p.lessonTypes.GetByID(ctx, lesson.LessonTypeID)
	if err != nil {
		return nil, fmt.Errorf("load lesson type: %w", err)
	}

	loc := timegrid.Location(tenant.Timezone, -5)
	startsLocal := lesson.StartsAt.In(loc)
	meetURL := "Pendiente de asignación"
	if lesson.MeetingURL != nil && *lesson.MeetingURL != "" {
		meetURL = *lesson.MeetingURL
	}

	vars := map[string]string{
		"studentName": studentName,
		"date":        startsLocal.Format("02/01/2006"),
		"time":        startsLocal.Format("15:04"),
		"meetUrl":     meetURL,
		"lessonType":  lessonType.Name,
		"amount":      formatAmount(lessonType.PriceAmount, lessonType.Currency),
		"tenantName":  tenant.Name,
		"bookingUrl":  fmt.Sprintf("%s/t/%s/portal", p.webBaseURL, tenant.Slug),
	}

	subject, template := subjectAndTemplate(jobName, tenant.Settings, vars)
	msg := email.Message{
		To:      studentEmail,
		Subject: subject,
		HTML:    wrapHTML(tenant.Name, email.RenderTemplate(template, vars), lesson.MeetingURL),
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	return map[string]any{"to": studentEmail, "subject": subject}, nil
}

func (p *EmailProcessor) sendPackReceipt(ctx context.Context, body []byte) (any, error) {
	var payload queue.PackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	tenant, err := p.tenants.GetByID(ctx, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	pack, err := p.packs.GetByID(ctx, payload.PackID, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load pack: %w", err)
	}
	studentName, studentEmail, err := p.students.ContactByStudentID(ctx, pack.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student contact: %w", err)
	}
	if studentEmail == "" {
		return map[string]any{"skipped": true, "reason": "no email"}, nil
	}
	lessonType, err := p.lessonTypes.GetByID(ctx, pack.LessonTypeID)
	if err != nil {
		return nil, fmt.Errorf("load lesson type: %w", err)
	}

	vars := map[string]string{
		"studentName": studentName,
		"lessonType":  lessonType.Name,
		"credits":     strconv.Itoa(pack.TotalCredits),
		"tenantName":  tenant.Name,
		"bookingUrl":  fmt.Sprintf("%s/t/%s/portal", p.webBaseURL, tenant.Slug),
	}
	subject := fmt.Sprintf("Paquete de %d clases activo", pack.TotalCredits)
	msg := email.Message{
		To:      studentEmail,
		Subject: subject,
		HTML:    wrapHTML(tenant.Name, email.RenderTemplate(defaultPackReceipt, vars), nil),
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	return map[string]any{"to": studentEmail, "subject": subject}, nil
}

func (p *EmailProcessor) sendWelcome(ctx context.Context, body []byte) (any, error) {
	var payload queue.WelcomePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if payload.Lead.Email == "" {
		return map[string]any{"skipped": true, "reason": "lead has no email"}, nil
	}

	tenant, err := p.tenants.GetByID(ctx, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	vars := map[string]string{
		"studentName": payload.Lead.Name,
		"tenantName":  tenant.Name,
		"bookingUrl":  fmt.Sprintf("%s/t/%s/portal", p.webBaseURL, tenant.Slug),
	}
	template := defaultWelcome
	if tenant.Settings.WelcomeTemplate != nil && *tenant.Settings.WelcomeTemplate != "" {
		template = *tenant.Settings.WelcomeTemplate
	}
	subject := fmt.Sprintf("Bienvenido a %s", tenant.Name)
	msg := email.Message{
		To:      payload.Lead.Email,
		Subject: subject,
		HTML:    wrapHTML(tenant.Name, email.RenderTemplate(template, vars), nil),
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	return map[string]any{"to": payload.Lead.Email, "subject": subject}, nil
}

func subjectAndTemplate(jobName string, settings models.TenantSettings, vars map[string]string) (subject, template string) {
	override := func(t *string, fallback string) string {
		if t != nil && *t != "" {
			return *t
		}
		return fallback
	}
	switch jobName {
	case queue.JobSendConfirmation:
		return "Clase confirmada — " + vars["date"], override(settings.ConfirmationTemplate, defaultConfirmation)
	case queue.JobSendReminder24h:
		return "Recordatorio: clase mañana a las " + vars["time"], override(settings.Reminder24hTemplate, defaultReminder24h)
	case queue.JobSendReminder1h:
		return "Tu clase empieza en 1 hora", override(settings.Reminder1hTemplate, defaultReminder1h)
	case queue.JobSendPaymentChase:
		return "Pago pendiente — " + vars["lessonType"], override(settings.PendingPaymentTemplate, defaultChase)
	case queue.JobSendFollowUp:
		return "¿Cómo te fue en tu clase?", override(settings.FollowUpTemplate, defaultFollowUp)
	default:
		return "Notificación de " + vars["tenantName"], defaultConfirmation
	}
}

// formatAmount renders a price in es-CO style with dot thousand separators,
// e.g. "$ 80.000 COP".
func formatAmount(amount int64, currency string) string {
	digits := strconv.FormatInt(amount, 10)
	negative := false
	if len(digits) > 0 && digits[0] == '-' {
		negative = true
		digits = digits[1:]
	}
	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, d)
	}
	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("$ %s%s %s", sign, grouped, currency)
}

func wrapHTML(tenantName, content string, meetingURL *string) string {
	button := ""
	if meetingURL != nil && *meetingURL != "" {
		button = fmt.Sprintf(`<a href="%s" style="display:inline-block;background:#6366f1;color:white;padding:12px 24px;border-radius:8px;text-decoration:none;margin-top:16px;">Conectarme a la clase</a>`, *meetingURL)
	}
	return fmt.Sprintf(`
<div style="font-family:'Segoe UI',Arial,sans-serif;max-width:600px;margin:0 auto;padding:24px;">
  <div style="background:linear-gradient(135deg,#6366f1,#8b5cf6);padding:24px;border-radius:12px 12px 0 0;text-align:center;">
    <h1 style="color:white;margin:0;font-size:20px;">%s</h1>
  </div>
  <div style="background:#fafafa;padding:24px;border-radius:0 0 12px 12px;border:1px solid #e5e7eb;">
    <p style="font-size:16px;line-height:1.6;color:#374151;">%s</p>
    %s
  </div>
  <p style="text-align:center;color:#9ca3af;font-size:12px;margin-top:16px;">%s · Clases de francés online</p>
</div>`, tenantName, content, button, tenantName)
}
