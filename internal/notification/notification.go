// Package notification delivers SMS messages to citizens and county experts
// through a Kavenegar-style HTTP gateway, and keeps a short per-phone
// delivery log in Redis for the operator console.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"roadassist/pkg/circuit"
)

// Notifier delivers a message to a phone number.
type Notifier interface {
	Notify(ctx context.Context, phoneNumber, message string) error
}

// Delivery is one logged SMS.
type Delivery struct {
	PhoneNumber string    `json:"phone_number"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

const deliveryLogSize = 100

// DeliveryLog keeps the last deliveries per phone number in Redis. A nil log
// or a log without a Redis client records nothing.
type DeliveryLog struct {
	redis *redis.Client
}

func NewDeliveryLog(client *redis.Client) *DeliveryLog {
	return &DeliveryLog{redis: client}
}

func deliveryKey(phone string) string {
	return "sms:deliveries:" + phone
}

// Record appends a delivery, trimming the log to its size cap.
func (l *DeliveryLog) Record(ctx context.Context, d Delivery) {
	if l == nil || l.redis == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	key := deliveryKey(d.PhoneNumber)
	if err := l.redis.LPush(ctx, key, data).Err(); err != nil {
		log.Printf("notification: record delivery for %s: %v", d.PhoneNumber, err)
		return
	}
	l.redis.LTrim(ctx, key, 0, deliveryLogSize-1)
}

// Recent returns up to limit deliveries to a phone, newest first.
func (l *DeliveryLog) Recent(ctx context.Context, phone string, limit int) ([]Delivery, error) {
	if l == nil || l.redis == nil {
		return nil, nil
	}
	items, err := l.redis.LRange(ctx, deliveryKey(phone), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read delivery log for %s: %w", phone, err)
	}
	out := make([]Delivery, 0, len(items))
	for _, item := range items {
		var d Delivery
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// SMSGateway posts messages to the provider's send endpoint.
type SMSGateway struct {
	endpoint string
	apiKey   string
	sender   string
	client   *http.Client
	breaker  *circuit.Breaker
	log      *DeliveryLog
}

// NewSMSGateway builds a gateway. deliveryLog may be nil.
func NewSMSGateway(endpoint, apiKey, sender string, deliveryLog *DeliveryLog) *SMSGateway {
	return &SMSGateway{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		sender:   sender,
		client:   &http.Client{Timeout: 10 * time.Second},
		breaker:  circuit.NewBreaker(5, 30*time.Second),
		log:      deliveryLog,
	}
}

// Notify sends one SMS. The provider expects a form-encoded POST on
// /v1/{apiKey}/sms/send.json with receptor, sender and message fields.
// Repeated provider failures trip the breaker and later sends fail fast.
func (g *SMSGateway) Notify(ctx context.Context, phoneNumber, message string) error {
	if err := g.breaker.Do(ctx, func() error {
		return g.send(ctx, phoneNumber, message)
	}); err != nil {
		return err
	}
	g.log.Record(ctx, Delivery{PhoneNumber: phoneNumber, Message: message, SentAt: time.Now()})
	return nil
}

func (g *SMSGateway) send(ctx context.Context, phoneNumber, message string) error {
	form := url.Values{
		"receptor": {phoneNumber},
		"message":  {message},
	}
	if g.sender != "" {
		form.Set("sender", g.sender)
	}

	sendURL := fmt.Sprintf("%s/v1/%s/sms/send.json", g.endpoint, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", phoneNumber, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send sms to %s: provider returned %s", phoneNumber, resp.Status)
	}
	return nil
}
