package eventbus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"defect-service/internal/model"
)

// Publisher pushes accepted detection events onto a NATS subject so
// dashboard and alerting consumers receive them without polling.
type Publisher struct {
	conn    *nats.Conn
	subject string
	log     zerolog.Logger
}

func NewPublisher(natsURL, subject string, log zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", natsURL).Str("subject", subject).Msg("connected to NATS")

	return &Publisher{conn: conn, subject: subject, log: log}, nil
}

func (p *Publisher) PublishDetection(event *model.DetectionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return err
	}
	p.log.Debug().Str("id", event.ID.String()).Str("class", string(event.Class)).Msg("detection alert published")
	return nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
