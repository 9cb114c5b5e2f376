package produce

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	JobExchange = "cvjobs.exchange"

	OptimizeQueue      = "cvjobs.optimize"
	OptimizeRoutingKey = "cvjobs.optimize"

	ApplyBatchQueue      = "cvjobs.apply"
	ApplyBatchRoutingKey = "cvjobs.apply"
)

// OptimizeJobMessage hands a CV optimization job to the worker fleet. The Job
// Record is the only shared state between publisher and worker; the message
// carries identifiers, never results.
type OptimizeJobMessage struct {
	JobID          string `json:"job_id"`
	OwnerID        string `json:"owner_id"`
	CVID           string `json:"cv_id"`
	JobDescription string `json:"job_description"`
	Timestamp      int64  `json:"timestamp"`
}

// ApplyBatchMessage hands a job-application batch run to the worker fleet.
type ApplyBatchMessage struct {
	JobID     string `json:"job_id"`
	OwnerID   string `json:"owner_id"`
	CVID      string `json:"cv_id"`
	JobCount  int    `json:"job_count"`
	Timestamp int64  `json:"timestamp"`
}

type JobService struct {
	channel *amqp.Channel
}

func InitJobService(channel *amqp.Channel) *JobService {
	service := &JobService{channel: channel}

	err := channel.ExchangeDeclare(
		JobExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Job exchange: " + err.Error())
	}

	for queue, key := range map[string]string{
		OptimizeQueue:   OptimizeRoutingKey,
		ApplyBatchQueue: ApplyBatchRoutingKey,
	} {
		_, err = channel.QueueDeclare(
			queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			panic("Failed to declare queue " + queue + ": " + err.Error())
		}

		err = channel.QueueBind(queue, key, JobExchange, false, nil)
		if err != nil {
			panic("Failed to bind queue " + queue + ": " + err.Error())
		}
	}

	return service
}

func (s *JobService) PublishOptimizeJob(ctx context.Context, msg OptimizeJobMessage) error {
	msg.Timestamp = time.Now().Unix()
	return s.publish(ctx, OptimizeRoutingKey, msg)
}

func (s *JobService) PublishApplyBatch(ctx context.Context, msg ApplyBatchMessage) error {
	msg.Timestamp = time.Now().Unix()
	return s.publish(ctx, ApplyBatchRoutingKey, msg)
}

func (s *JobService) publish(ctx context.Context, routingKey string, msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		JobExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
