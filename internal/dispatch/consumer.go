package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/pkg/logger"
)

// Consumer drains the email queue. Settings are re-read per delivery so the
// operator can rotate the relay webhook while the consumer runs. Failed
// deliveries are nacked without requeue and land in the DLQ.
type Consumer struct {
	data   gateway.Data
	sender EmailSender
	log    *logger.Logger
}

func NewConsumer(data gateway.Data, sender EmailSender, log *logger.Logger) *Consumer {
	return &Consumer{data: data, sender: sender, log: log}
}

// Run consumes until ctx is canceled. Blocks.
func (c *Consumer) Run(ctx context.Context, url, queue string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 2
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Infof("email consumer started, queue=%s concurrency=%d", queue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.handle(ctx, workerID, d)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Infof("email consumer shutting down")
			close(jobs)
			wg.Wait()
			return nil
		case d, ok := <-msgs:
			if !ok {
				c.log.Warnf("delivery channel closed")
				time.Sleep(time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	var job EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil || len(job.To) == 0 {
		c.log.Warnf("worker=%d bad email job: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	settings, err := c.loadSettings(ctx)
	if err != nil {
		c.log.Errorf("worker=%d load settings: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := c.sender.Send(ctx, job, settings); err != nil {
		c.log.Errorf("worker=%d email %s failed cost=%s err=%v", workerID, job.EmailID, time.Since(start), err)
		c.markEmail(ctx, job.EmailID, "failed")
		_ = d.Nack(false, false)
		return
	}

	c.markEmail(ctx, job.EmailID, "sent")
	if err := d.Ack(false); err != nil {
		c.log.Warnf("worker=%d ack failed email=%s err=%v", workerID, job.EmailID, err)
	}
}

func (c *Consumer) loadSettings(ctx context.Context) (domain.EmailSettings, error) {
	rows, err := c.data.Query(ctx, "email_settings", nil, nil, 1)
	if err != nil {
		return domain.EmailSettings{}, err
	}
	if len(rows) == 0 {
		return domain.EmailSettings{}, nil
	}
	return domain.EmailSettingsFromRow(rows[0]), nil
}

func (c *Consumer) markEmail(ctx context.Context, emailID, status string) {
	if emailID == "" {
		return
	}
	_, err := c.data.Mutate(ctx, "emails", gateway.OpUpdate,
		map[string]any{"status": status},
		gateway.Filter{"id": gateway.Eq(emailID)})
	if err != nil {
		c.log.Warnf("mark email %s %s: %v", emailID, status, err)
	}
}
