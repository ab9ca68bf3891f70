package amqp

import (
	"encoding/json"
	"errors"
	"strings"

	"sms-ledger/internal/ingest"
)

// EncodeMessage converts a message to its JSON wire form.
func EncodeMessage(msg ingest.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a queued message. A message without text is malformed.
func DecodeMessage(data []byte) (ingest.Message, error) {
	var msg ingest.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return ingest.Message{}, err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return ingest.Message{}, errors.New("message text is empty")
	}
	return msg, nil
}
