package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/metrics"
)

type Notification struct {
	To      string
	Subject string
	Body    string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type MailConfig struct {
	From     string
	Host     string
	Port     string
	User     string
	Password string
}

// MailNotifier sends notifications over SMTP.
type MailNotifier struct {
	cfg MailConfig
}

func NewMailNotifier(cfg MailConfig) *MailNotifier {
	return &MailNotifier{cfg: cfg}
}

func (m *MailNotifier) Notify(ctx context.Context, n Notification) error {
	// Fresh mail service per send: receivers accumulate across AddReceivers calls.
	mailSvc := mail.New(m.cfg.From, m.cfg.Host+":"+m.cfg.Port)
	if m.cfg.User != "" {
		mailSvc.AuthenticateSMTP("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	mailSvc.AddReceivers(n.To)

	notifier := notify.New()
	notifier.UseServices(mailSvc)

	if err := notifier.Send(ctx, n.Subject, n.Body); err != nil {
		return fmt.Errorf("send email to %s: %w", n.To, err)
	}
	return nil
}

// LogNotifier only logs; used when no SMTP host is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("notification", "to", n.To, "subject", n.Subject)
	return nil
}

// NotificationQueue delivers notifications on background workers. Enqueue
// never blocks; a full queue drops the notification.
type NotificationQueue struct {
	ch       chan Notification
	notifier Notifier
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
	once     sync.Once
}

func NewNotificationQueue(notifier Notifier, size, workers int, logger *slog.Logger) *NotificationQueue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &NotificationQueue{
		ch:       make(chan Notification, size),
		notifier: notifier,
		workers:  workers,
		timeout:  30 * time.Second,
		logger:   logger,
	}
}

func (q *NotificationQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
}

func (q *NotificationQueue) Enqueue(n Notification) bool {
	select {
	case q.ch <- n:
		return true
	default:
		metrics.NotifyQueueDrops.Add(1)
		q.logger.Warn("notification queue full, dropping", "to", n.To, "subject", n.Subject)
		return false
	}
}

// Close waits for queued notifications to be sent. Enqueue must not be called
// after Close.
func (q *NotificationQueue) Close() {
	q.once.Do(func() { close(q.ch) })
	q.wg.Wait()
}

func (q *NotificationQueue) run() {
	defer q.wg.Done()
	for n := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.notifier.Notify(ctx, n)
		cancel()
		if err != nil {
			metrics.NotifyFailures.Add(1)
			q.logger.Error("notification failed", "to", n.To, "subject", n.Subject, "error", err)
			continue
		}
		metrics.NotificationsSent.Add(1)
	}
}
