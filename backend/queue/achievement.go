package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"

	storage "github.com/nuhaid/barakah/backend/storage/cache"
	"github.com/nuhaid/barakah/backend/server/notifications/email"
)

// processedTTL is how long a handled notification ID stays in the cache.
// Long enough to cover any realistic redelivery window.
const processedTTL = 72 * time.Hour

// globalCount is used in the round robin algorithm to assign producers to messages.
var globalCount int

// UnlockProducerFactory creates producers for achievement-unlock messages.
type UnlockProducerFactory struct{}

// UnlockConsumerFactory creates consumers for achievement-unlock messages.
// It carries the cache used to deduplicate redelivered messages.
type UnlockConsumerFactory struct {
	Cache storage.CacheInterface
}

// UnlockProducer publishes achievement-unlock messages to the AMQP queue.
type UnlockProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// UnlockConsumer reads achievement-unlock messages from the AMQP queue and
// sends the congratulation email, using the cache to skip messages that
// were already handled.
type UnlockConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   storage.CacheInterface
}

// UnlockMessage announces that a user earned an achievement.
type UnlockMessage struct {
	ID          string `json:"id"`          // unique id of this notification
	Username    string `json:"username"`    // the user who earned the achievement
	Achievement string `json:"achievement"` // the achievement's display name
	To          string `json:"to"`          // the recipient email address
}

// CreateProducer instantiates a new UnlockProducer bound to the given
// connection, channel and queue.
func (f *UnlockProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &UnlockProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer instantiates a new UnlockConsumer bound to the given
// connection, channel, queue and the factory's cache.
func (f *UnlockConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &UnlockConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		cache:   f.Cache,
	}, nil
}

// Publish publishes the given message body to the queue.
func (p *UnlockProducer) Publish(body []byte) error {
	err := p.channel.Publish(
		"",           // exchange
		p.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume sets up a consumer on the queue and launches a worker goroutine
// that reads messages until the context ends. Each message is unmarshalled,
// checked against the cache for prior handling, and either acknowledged
// as a duplicate or handled by sending the congratulation email. Transient
// failures are nacked back onto the queue.
func (c *UnlockConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := c.channel.Consume(
		c.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:

				if !ok {
					return
				}

				message := &UnlockMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal unlock message: %v", err)
					d.Nack(false, true)
					continue
				}

				// Fetch processed state from cache
				processed, err := c.cache.Get(ctx, "unlock_"+message.ID)
				if err != nil {
					// Ignore cache misses, handle other errors
					if err.Error() != "key does not exist" {
						log.Printf("error checking cache: %v", err)
						d.Nack(false, true)
						continue
					}
				}

				if processed != nil {
					d.Ack(false)
					continue
				}

				if err := email.SendUnlockEmail(message.To, message.Username, message.Achievement); err != nil {
					log.Printf("failed to send unlock email: %v", err)
					d.Nack(false, true)
				} else {
					d.Ack(false)
					if err := c.cache.Set(ctx, "unlock_"+message.ID, true, processedTTL); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildUnlockQueue initializes the Queue carrying achievement-unlock
// messages, with the requested numbers of producers and consumers. The
// cache is shared by every consumer for redelivery dedup.
func BuildUnlockQueue(rabbitMQURL string, numProducers int, numConsumers int, cache storage.CacheInterface) *Queue {

	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &UnlockProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &UnlockConsumerFactory{Cache: cache}
	}

	return InitQueue(rabbitMQURL, "achievementUnlocks", prodFactories, consFactories)
}

// InitUnlockCache initializes the cache used to deduplicate unlock
// notifications, connecting to the cache server at the given URL.
func InitUnlockCache(url string) storage.CacheInterface {
	c, err := storage.NewCache(url)
	if err != nil {
		log.Fatalf("Error connecting to cache: %v", err)
	}
	return c
}

// PublishUnlock serializes an unlock message and publishes it onto the
// queue using one of the producers in a round-robin manner.
func PublishUnlock(msg *UnlockMessage, unlockQueue *Queue) error {

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.New("failed to marshal unlock message: " + err.Error())
	}

	producerCount := len(unlockQueue.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := unlockQueue.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish unlock message: " + err.Error())
	}

	return nil
}
