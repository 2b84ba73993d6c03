package messaging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testClient() *KafkaClient {
	return NewKafkaClient([]string{"localhost:9092"}, slog.New(slog.DiscardHandler))
}

func TestGetProducerPools(t *testing.T) {
	client := testClient()
	defer func() {
		_ = client.Close()
	}()

	first := client.GetProducer(TopicBlocks)
	second := client.GetProducer(TopicBlocks)
	if first != second {
		t.Error("GetProducer() created a second writer for the same topic")
	}

	other := client.GetProducer(TopicStatus)
	if other == first {
		t.Error("GetProducer() shared a writer across topics")
	}
}

func TestPublishJSONMarshalFailure(t *testing.T) {
	client := testClient()
	defer func() {
		_ = client.Close()
	}()

	// Channels cannot marshal; the failure must surface before any network
	// activity.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.PublishJSON(ctx, TopicBlocks, "key", make(chan int)); err == nil {
		t.Error("PublishJSON() accepted an unmarshalable value")
	}
}

func TestBlockMintedMessageFields(t *testing.T) {
	msg := &BlockMintedMessage{
		BlockHash: "abc",
		Height:    1001,
		ProofType: "stake",
		StakeCoin: "42:1",
		MintedAt:  time.Now(),
	}

	if msg.Height != 1001 || msg.ProofType != "stake" {
		t.Error("BlockMintedMessage did not keep its fields")
	}
}

func TestTopicNames(t *testing.T) {
	topics := []string{TopicBlocks, TopicStatus, TopicErrors}
	seen := make(map[string]bool)

	for _, topic := range topics {
		if topic == "" {
			t.Error("empty topic name")
		}
		if seen[topic] {
			t.Errorf("duplicate topic name %q", topic)
		}
		seen[topic] = true
	}
}
