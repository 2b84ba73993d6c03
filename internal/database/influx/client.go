// Package influx records time-series staking metrics: kernel attempts per
// grid slot, nonce-search rates, and minted blocks.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Client wraps InfluxDB operations for time-series metrics
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewClient creates a new InfluxDB client
func NewClient(cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Close closes the InfluxDB connection
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}

// Health checks InfluxDB connectivity
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("health check failed: %s", msg)
	}

	return nil
}

// Staking metrics

// WriteKernelSlotMetric records one stake grid slot: how many coins were
// evaluated and whether one passed.
func (c *Client) WriteKernelSlotMetric(height int64, slotTime uint32, coinsTried int, found bool) {
	tags := map[string]string{
		"found": fmt.Sprintf("%t", found),
	}

	fields := map[string]interface{}{
		"height":      height,
		"slot_time":   int64(slotTime),
		"coins_tried": coinsTried,
		"count":       1,
	}

	point := write.NewPoint("kernel_slots", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteSearchMetric records nonce-search progress.
func (c *Client) WriteSearchMetric(height int64, hashes, rate float64) {
	fields := map[string]interface{}{
		"height":   height,
		"hashes":   hashes,
		"rate_hps": rate,
	}

	point := write.NewPoint("nonce_search", nil, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteBlockMetric records an accepted block.
func (c *Client) WriteBlockMetric(height int64, hash, proofType string, stakeValue int64) {
	tags := map[string]string{
		"proof_type": proofType,
		"hash":       hash,
	}

	fields := map[string]interface{}{
		"height":      height,
		"stake_value": stakeValue,
		"count":       1,
	}

	point := write.NewPoint("minted_blocks", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
