package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

var _ sarama.SCRAMClient = (*scramClient)(nil)

// scramHashes maps the SASL mechanisms the consumer, DLQ and producer accept
// to their xdg-go/scram hash.
var scramHashes = map[string]scram.HashGeneratorFcn{
	sarama.SASLTypeSCRAMSHA256: scram.SHA256,
	sarama.SASLTypeSCRAMSHA512: scram.SHA512,
}

// scramClient adapts an xdg-go/scram conversation to sarama.SCRAMClient.
// Begin must be called before Step or Done.
type scramClient struct {
	hash scram.HashGeneratorFcn
	conv *scram.ClientConversation
}

// Begin starts a new conversation for the given credentials.
func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hash.NewClient(userName, password, authzID)
	if err != nil {
		return fmt.Errorf("failed to create SCRAM client: %w", err)
	}
	c.conv = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.conv.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.conv != nil && c.conv.Done()
}

// scramClientGenerator returns the sarama client factory for a SCRAM
// mechanism name.
func scramClientGenerator(mechanism string) (func() sarama.SCRAMClient, error) {
	hash, ok := scramHashes[mechanism]
	if !ok {
		return nil, fmt.Errorf("unsupported SCRAM mechanism: %s", mechanism)
	}
	return func() sarama.SCRAMClient {
		return &scramClient{hash: hash}
	}, nil
}
