package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/shared/metrics"
	"github.com/sepguard/platform/internal/shared/types"
)

// Channel identifies a delivery channel
type Channel string

const (
	ChannelAudio Channel = "audio"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one outbound notification
type Message struct {
	ID        types.ID
	Channel   Channel
	AlertID   types.ID
	PatientID types.ID
	Severity  string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// AudioProvider sounds the ward station cue for a raised alert
type AudioProvider interface {
	PlayCue(ctx context.Context, severity string) error
}

// EmailProvider sends alert emails to the on-call distribution list
type EmailProvider interface {
	SendEmail(ctx context.Context, subject, body string) error
}

// SMSProvider sends alert texts to the on-call pager number
type SMSProvider interface {
	SendSMS(ctx context.Context, body string) error
}

// Config holds dispatcher settings
type Config struct {
	Workers    int
	BufferSize int
}

// DefaultConfig returns the default dispatcher settings
func DefaultConfig() Config {
	return Config{Workers: 2, BufferSize: 256}
}

// Dispatcher fans alert notifications out to the configured channels
// through a bounded worker pool. Enqueueing never blocks; when the buffer
// is full the message is dropped and logged, because a stalled provider
// must never stall alert raising.
type Dispatcher struct {
	audioProvider AudioProvider
	emailProvider EmailProvider
	smsProvider   SMSProvider
	logger        *zap.Logger
	clock         types.Clock

	msgCh   chan *Message
	workers int

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	sent    map[Channel]int
	failed  map[Channel]int
	dropped int
}

// NewDispatcher creates a dispatcher. Providers may be nil; messages for
// a missing provider fail and are counted.
func NewDispatcher(audio AudioProvider, email EmailProvider, sms SMSProvider, cfg Config, logger *zap.Logger, clock types.Clock) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Dispatcher{
		audioProvider: audio,
		emailProvider: email,
		smsProvider:   sms,
		logger:        logger,
		clock:         clock,
		msgCh:         make(chan *Message, cfg.BufferSize),
		workers:       cfg.Workers,
		stopCh:        make(chan struct{}),
		sent:          make(map[Channel]int),
		failed:        make(map[Channel]int),
	}
}

// Start launches the worker pool
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true
	d.mu.Unlock()

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return nil
}

// Stop drains the workers. Queued messages that have not been picked up
// are discarded.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
}

// Notify implements alert.Notifier. One message is queued per enabled
// channel.
func (d *Dispatcher) Notify(ctx context.Context, a *alert.Alert, audio, email, sms bool) {
	subject := fmt.Sprintf("[%s] sepsis alert for patient %s", a.Severity, a.PatientID)
	body := fmt.Sprintf("%s (source: %s, score: %d)", a.Message, a.Source, a.Score)

	if audio {
		d.enqueue(&Message{
			ID:        types.NewID(),
			Channel:   ChannelAudio,
			AlertID:   a.ID,
			PatientID: a.PatientID,
			Severity:  string(a.Severity),
			CreatedAt: d.clock.Now(),
		})
	}
	if email {
		d.enqueue(&Message{
			ID:        types.NewID(),
			Channel:   ChannelEmail,
			AlertID:   a.ID,
			PatientID: a.PatientID,
			Subject:   subject,
			Body:      body,
			CreatedAt: d.clock.Now(),
		})
	}
	if sms {
		d.enqueue(&Message{
			ID:        types.NewID(),
			Channel:   ChannelSMS,
			AlertID:   a.ID,
			PatientID: a.PatientID,
			Body:      body,
			CreatedAt: d.clock.Now(),
		})
	}
}

func (d *Dispatcher) enqueue(m *Message) {
	select {
	case d.msgCh <- m:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("notification buffer full, dropping message",
			zap.String("channel", string(m.Channel)),
			zap.String("alert_id", m.AlertID.String()),
		)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case m := <-d.msgCh:
			d.deliver(ctx, m)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, m *Message) {
	var err error

	switch m.Channel {
	case ChannelAudio:
		if d.audioProvider != nil {
			err = d.audioProvider.PlayCue(ctx, m.Severity)
		} else {
			err = fmt.Errorf("audio provider not configured")
		}
	case ChannelEmail:
		if d.emailProvider != nil {
			err = d.emailProvider.SendEmail(ctx, m.Subject, m.Body)
		} else {
			err = fmt.Errorf("email provider not configured")
		}
	case ChannelSMS:
		if d.smsProvider != nil {
			err = d.smsProvider.SendSMS(ctx, m.Body)
		} else {
			err = fmt.Errorf("sms provider not configured")
		}
	default:
		err = fmt.Errorf("unknown channel: %s", m.Channel)
	}

	metrics.RecordNotificationSent(string(m.Channel), err == nil)

	d.mu.Lock()
	if err != nil {
		d.failed[m.Channel]++
	} else {
		d.sent[m.Channel]++
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Error("notification delivery failed",
			zap.String("channel", string(m.Channel)),
			zap.String("alert_id", m.AlertID.String()),
			zap.Error(err),
		)
		return
	}

	d.logger.Debug("notification delivered",
		zap.String("channel", string(m.Channel)),
		zap.String("alert_id", m.AlertID.String()),
	)
}

// Stats is a point-in-time delivery summary
type Stats struct {
	Sent    map[Channel]int `json:"sent"`
	Failed  map[Channel]int `json:"failed"`
	Dropped int             `json:"dropped"`
}

// GetStats returns delivery counters
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{
		Sent:    make(map[Channel]int, len(d.sent)),
		Failed:  make(map[Channel]int, len(d.failed)),
		Dropped: d.dropped,
	}
	for k, v := range d.sent {
		s.Sent[k] = v
	}
	for k, v := range d.failed {
		s.Failed[k] = v
	}
	return s
}

// LogProvider writes notifications to the log instead of an external
// service. It stands in when no real provider is configured.
type LogProvider struct {
	Logger *zap.Logger
}

func (p *LogProvider) PlayCue(ctx context.Context, severity string) error {
	p.Logger.Info("audio cue", zap.String("severity", severity))
	return nil
}

func (p *LogProvider) SendEmail(ctx context.Context, subject, body string) error {
	p.Logger.Info("email notification", zap.String("subject", subject), zap.String("body", body))
	return nil
}

func (p *LogProvider) SendSMS(ctx context.Context, body string) error {
	p.Logger.Info("sms notification", zap.String("body", body))
	return nil
}
