// Package broadcaster publishes executed trades to Kafka. It sits entirely
// outside the matching core: the service hands it trades and it ships them
// from a buffered queue so a slow broker never stalls order flow.
package broadcaster

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"matchbook/book"
)

// Event is the JSON wire form of one execution.
type Event struct {
	V         int    `json:"v"`
	BuyOrder  uint64 `json:"buy_order"`
	SellOrder uint64 `json:"sell_order"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"qty"`
}

type Broadcaster struct {
	producer sarama.SyncProducer
	topic    string
	queue    chan book.Trade
}

func New(brokers []string, topic string) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{
		producer: producer,
		topic:    topic,
		queue:    make(chan book.Trade, 4096),
	}, nil
}

// Publish enqueues trades for delivery. Trades are dropped, with a log
// line, when the queue is full; the book itself is the source of truth.
func (b *Broadcaster) Publish(trades []book.Trade) {
	for _, tr := range trades {
		select {
		case b.queue <- tr:
		default:
			log.Printf("[broadcaster] queue full, dropping trade buy=%d sell=%d", tr.Bid.OrderID, tr.Ask.OrderID)
		}
	}
}

// Start drains the queue until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	log.Println("[broadcaster] started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tr := <-b.queue:
				b.send(tr)
			}
		}
	}()
}

func (b *Broadcaster) send(tr book.Trade) {
	ev := Event{
		V:         1,
		BuyOrder:  uint64(tr.Bid.OrderID),
		SellOrder: uint64(tr.Ask.OrderID),
		Price:     tr.Ask.Price,
		Quantity:  tr.Ask.Quantity,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[broadcaster] encode: %v", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		log.Printf("[broadcaster] send: %v", err)
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
