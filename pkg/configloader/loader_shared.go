package configloader

import (
	"time"

	"github.com/hyp3rd/critlog"
)

type rawConfig struct {
	LogName string `mapstructure:"log_name"`
	Node    struct {
		ID      string `mapstructure:"id"`
		Cluster string `mapstructure:"cluster"`
		Zone    string `mapstructure:"zone"`
	} `mapstructure:"node"`
	Target                string `mapstructure:"target"`
	DialTimeout           string `mapstructure:"dial_timeout"`
	MaxBufferBytes        *int   `mapstructure:"max_buffer_bytes"`
	MaxPendingBufferBytes *int   `mapstructure:"max_pending_buffer_size_bytes"`
	FlushInterval         string `mapstructure:"buffer_flush_interval"`
	MessageAckTimeout     string `mapstructure:"message_ack_timeout"`
	TickInterval          string `mapstructure:"ack_tick_interval"`
	EventQueueSize        *int   `mapstructure:"event_queue_size"`
	EntryQueueSize        *int   `mapstructure:"entry_queue_size"`
}

func applyRaw(raw rawConfig) (RuntimeConfig, error) {
	cfg := critlog.DefaultConfig()
	cfg.LogName = raw.LogName
	cfg.Node = critlog.NodeInfo{
		ID:      raw.Node.ID,
		Cluster: raw.Node.Cluster,
		Zone:    raw.Node.Zone,
	}

	if raw.MaxBufferBytes != nil {
		cfg.MaxBufferBytes = *raw.MaxBufferBytes
	}

	if raw.MaxPendingBufferBytes != nil {
		cfg.MaxPendingBufferBytes = *raw.MaxPendingBufferBytes
	}

	if raw.EventQueueSize != nil {
		cfg.EventQueueSize = *raw.EventQueueSize
	}

	if raw.EntryQueueSize != nil {
		cfg.EntryQueueSize = *raw.EntryQueueSize
	}

	var err error

	if cfg.FlushInterval, err = parseDurationOr(raw.FlushInterval, cfg.FlushInterval); err != nil {
		return RuntimeConfig{}, err
	}

	if cfg.MessageAckTimeout, err = parseDurationOr(raw.MessageAckTimeout, cfg.MessageAckTimeout); err != nil {
		return RuntimeConfig{}, err
	}

	if cfg.TickInterval, err = parseDurationOr(raw.TickInterval, cfg.TickInterval); err != nil {
		return RuntimeConfig{}, err
	}

	dialTimeout, err := parseDurationOr(raw.DialTimeout, 5*time.Second)
	if err != nil {
		return RuntimeConfig{}, err
	}

	return RuntimeConfig{Config: cfg, Target: raw.Target, DialTimeout: dialTimeout}, nil
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}

	return time.ParseDuration(s)
}

func allKeys() []string {
	return []string{
		"log_name",
		"node.id",
		"node.cluster",
		"node.zone",
		"target",
		"dial_timeout",
		"max_buffer_bytes",
		"max_pending_buffer_size_bytes",
		"buffer_flush_interval",
		"message_ack_timeout",
		"ack_tick_interval",
		"event_queue_size",
		"entry_queue_size",
	}
}
