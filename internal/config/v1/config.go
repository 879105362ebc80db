package v1

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/asaskevich/govalidator"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// Config is the schema of the controller configuration file. Every value carries a default,
// the node domain and the provider token may also be supplied through the environment.
type Config struct {
	ControllerConfig `json:",inline"`
	DNS              DNSConfig       `json:"dns,omitempty"`
	Reconcile        ReconcileConfig `json:"reconcile,omitempty"`
	Provider         ProviderConfig  `json:"provider,omitempty"`
}

//-------------------------------------------------------------------------------------------------

// ControllerConfig provides configuration for the controller.
type ControllerConfig struct {
	Health         HealthConfig         `json:"health,omitempty"`
	LeaderElection LeaderElectionConfig `json:"leaderElection,omitempty"`
	Metrics        MetricsConfig        `json:"metrics,omitempty"`
}

// HealthConfig provides configuration for the controller health checks.
type HealthConfig struct {
	HealthProbeBindAddress string `json:"healthProbeBindAddress,omitempty"`
}

// LeaderElectionConfig provides configuration for the leader election.
type LeaderElectionConfig struct {
	LeaderElect       bool   `json:"leaderElect,omitempty"`
	ResourceName      string `json:"resourceName,omitempty"`
	ResourceNamespace string `json:"resourceNamespace,omitempty"`
}

// MetricsConfig provides configuration for the controller metrics.
type MetricsConfig struct {
	BindAddress string `json:"bindAddress,omitempty"`
}

//-------------------------------------------------------------------------------------------------

// DNSConfig describes the records the controller maintains for every node.
type DNSConfig struct {
	// Domain is the parent domain that all node records are created under. The NODE_DOMAIN
	// environment variable takes precedence over this value.
	Domain string `json:"domain,omitempty"`
	// TTL is the time-to-live in seconds of every managed record.
	TTL int `json:"ttl,omitempty"`
	// AddressType selects the node address that records point at, either ExternalIP or
	// InternalIP.
	AddressType string `json:"addressType,omitempty"`
	// SyncCacheTTL bounds how long a successfully synced node is skipped without consulting
	// the provider. Once an entry expires, the next pass verifies the remote records again.
	SyncCacheTTL metav1.Duration `json:"syncCacheTTL,omitempty"`
}

// ReconcileConfig tunes concurrency and retry behavior of the reconciliation loop.
type ReconcileConfig struct {
	// Workers is the number of nodes that may be reconciled concurrently.
	Workers int `json:"workers,omitempty"`
	// RetryBaseDelay and RetryMaxDelay bound the exponential backoff applied to failed
	// reconciliation attempts.
	RetryBaseDelay metav1.Duration `json:"retryBaseDelay,omitempty"`
	RetryMaxDelay  metav1.Duration `json:"retryMaxDelay,omitempty"`
	// FatalRetryDelay is the fixed interval at which reconciliation is retried after errors
	// that require operator intervention, such as rejected credentials.
	FatalRetryDelay metav1.Duration `json:"fatalRetryDelay,omitempty"`
}

// ProviderConfig configures access to the Linode API.
type ProviderConfig struct {
	// Token is the API bearer token. The LINODE_API_TOKEN environment variable takes
	// precedence and is the preferred way to supply the credential.
	Token string `json:"token,omitempty"`
	// Timeout bounds every single API call.
	Timeout metav1.Duration `json:"timeout,omitempty"`
	// QPS and Burst configure the client-side pacing of API calls.
	QPS   float32 `json:"qps,omitempty"`
	Burst int     `json:"burst,omitempty"`
	// PageSize is the number of records requested per listing page.
	PageSize int `json:"pageSize,omitempty"`
}

//-------------------------------------------------------------------------------------------------

// Load reads the configuration from the given YAML file and fills unset values with defaults.
// A missing file is not an error: the configuration may be assembled entirely from defaults
// and environment variables.
func Load(path string) (Config, error) {
	var config Config
	contents, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(contents, &config); err != nil {
			return config, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := mergo.Merge(&config, defaults()); err != nil {
		return config, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides configuration values from the process environment.
func (c *Config) ApplyEnv() {
	if domain := os.Getenv("NODE_DOMAIN"); domain != "" {
		c.DNS.Domain = domain
	}
	if token := os.Getenv("LINODE_API_TOKEN"); token != "" {
		c.Provider.Token = token
	}
}

// Validate returns an error describing the first problem that makes the configuration
// unusable.
func (c Config) Validate() error {
	if c.DNS.Domain == "" {
		return fmt.Errorf("no node domain configured, set `dns.domain` or NODE_DOMAIN")
	}
	if !govalidator.IsDNSName(c.DNS.Domain) {
		return fmt.Errorf("node domain %q is not a valid DNS name", c.DNS.Domain)
	}
	if c.DNS.TTL <= 0 {
		return fmt.Errorf("record TTL must be positive, got %d", c.DNS.TTL)
	}
	if c.DNS.AddressType != string(corev1.NodeExternalIP) &&
		c.DNS.AddressType != string(corev1.NodeInternalIP) {
		return fmt.Errorf("address type %q is not supported, use ExternalIP or InternalIP",
			c.DNS.AddressType)
	}
	if c.Reconcile.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Reconcile.Workers)
	}
	if c.Provider.Token == "" {
		return fmt.Errorf("no provider token configured, set `provider.token` or LINODE_API_TOKEN")
	}
	if c.Provider.Timeout.Duration <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.Provider.Timeout.Duration)
	}
	if c.Provider.QPS <= 0 || c.Provider.Burst <= 0 {
		return fmt.Errorf("provider QPS and burst must be positive, got %v and %d",
			c.Provider.QPS, c.Provider.Burst)
	}
	if c.Provider.PageSize <= 0 {
		return fmt.Errorf("provider page size must be positive, got %d", c.Provider.PageSize)
	}
	return nil
}

func defaults() Config {
	return Config{
		ControllerConfig: ControllerConfig{
			Health:  HealthConfig{HealthProbeBindAddress: ":8081"},
			Metrics: MetricsConfig{BindAddress: ":8080"},
			LeaderElection: LeaderElectionConfig{
				ResourceName:      "node-dns",
				ResourceNamespace: "kube-system",
			},
		},
		DNS: DNSConfig{
			TTL:          300,
			AddressType:  string(corev1.NodeExternalIP),
			SyncCacheTTL: metav1.Duration{Duration: time.Hour},
		},
		Reconcile: ReconcileConfig{
			Workers:         4,
			RetryBaseDelay:  metav1.Duration{Duration: 5 * time.Second},
			RetryMaxDelay:   metav1.Duration{Duration: 5 * time.Minute},
			FatalRetryDelay: metav1.Duration{Duration: 5 * time.Minute},
		},
		Provider: ProviderConfig{
			Timeout:  metav1.Duration{Duration: 30 * time.Second},
			QPS:      5,
			Burst:    10,
			PageSize: 100,
		},
	}
}
