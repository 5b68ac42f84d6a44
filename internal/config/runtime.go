package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Range is an inclusive [Min, Max] bound on a Duration-valued server
// parameter, used wherever spec.md names a "Limits" pair (publishing
// interval, sampling interval).
type Range struct {
	Min Duration `yaml:"min" json:"min"`
	Max Duration `yaml:"max" json:"max"`
}

// QueueSizeRange is Range's equivalent for a plain item-count bound
// (MonitoredItem queue size has no time dimension).
type QueueSizeRange struct {
	Min uint32 `yaml:"min" json:"min"`
	Max uint32 `yaml:"max" json:"max"`
}

// ServerConfig carries the server-wide tunables this core's components are
// revised against: Subscription.Limits.Revise clamps a client's requested
// publishing interval/keepalive/lifetime count against these bounds, and
// asyncmethod.Manager's queue sizing and operation timeout come straight
// from here. Hot-reloadable: the embedding application owns re-reading the
// file and swapping a fresh *ServerConfig in, the core only ever sees the
// resulting struct.
type ServerConfig struct {
	MaxSubscriptionsPerSession uint32 `yaml:"max_subscriptions_per_session" json:"max_subscriptions_per_session"`

	PublishingIntervalLimits   Range  `yaml:"publishing_interval_limits" json:"publishing_interval_limits"`
	MaxKeepAliveCount          uint32 `yaml:"max_keep_alive_count" json:"max_keep_alive_count"`
	MaxLifetimeCount           uint32 `yaml:"max_lifetime_count" json:"max_lifetime_count"`
	MaxNotificationsPerPublish uint32 `yaml:"max_notifications_per_publish" json:"max_notifications_per_publish"`
	MaxRetransmissionQueueSize uint32 `yaml:"max_retransmission_queue_size" json:"max_retransmission_queue_size"`

	MaxMonitoredItemsPerSubscription uint32         `yaml:"max_monitored_items_per_subscription" json:"max_monitored_items_per_subscription"`
	SamplingIntervalLimits          Range          `yaml:"sampling_interval_limits" json:"sampling_interval_limits"`
	QueueSizeLimits                 QueueSizeRange `yaml:"queue_size_limits" json:"queue_size_limits"`

	AsyncOperationTimeout    Duration `yaml:"async_operation_timeout" json:"async_operation_timeout"`
	MaxQueuedAsyncOperations uint32   `yaml:"max_queued_async_operations" json:"max_queued_async_operations"`
}

// NewDefaultServerConfig returns the bounds this repository's tests and
// cmd/opcuacore-demo run against absent an operator-supplied file.
func NewDefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxSubscriptionsPerSession: 100,

		PublishingIntervalLimits:   Range{Min: Duration(50 * time.Millisecond), Max: Duration(time.Hour)},
		MaxKeepAliveCount:          10000,
		MaxLifetimeCount:           30000,
		MaxNotificationsPerPublish: 10000,
		MaxRetransmissionQueueSize: 100,

		MaxMonitoredItemsPerSubscription: 10000,
		SamplingIntervalLimits:           Range{Min: Duration(50 * time.Millisecond), Max: Duration(time.Hour)},
		QueueSizeLimits:                  QueueSizeRange{Min: 1, Max: 10000},

		AsyncOperationTimeout:    Duration(2 * time.Minute),
		MaxQueuedAsyncOperations: 1000,
	}
}

// LoadServerConfig reads and parses a YAML bounds file, following the
// teacher's config.Duration/YAML-tag pattern instead of flags — the
// embedding application, not this core, owns process startup.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server config %q: %w", path, err)
	}
	cfg := NewDefaultServerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse server config %q: %w", path, err)
	}
	return cfg, nil
}
