package main

import (
	"context"
	"flag"

	"github.com/borchero/zeus/pkg/zeus"
	"github.com/go-logr/zapr"
	configv1 "github.com/haimgel/node-dns/internal/config/v1"
	"github.com/haimgel/node-dns/internal/controllers"
	"github.com/haimgel/node-dns/internal/provider"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

func main() {
	var cfgFile string
	flag.StringVar(&cfgFile, "config", "/etc/node-dns/config.yaml", "The config file to use.")
	flag.Parse()

	// Initialize logger
	ctx := context.Background()
	logger := zeus.Logger(ctx)
	defer zeus.Sync()

	// Load the config file if available, merge in the environment and validate
	config, err := configv1.Load(cfgFile)
	if err != nil {
		logger.Fatal("failed to load config file", zap.Error(err))
	}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	ctrl.SetLogger(zapr.NewLogger(logger))

	// Initialize the options and the scheme
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	options := ctrl.Options{
		Scheme:                  scheme,
		LeaderElection:          config.LeaderElection.LeaderElect,
		LeaderElectionID:        config.LeaderElection.ResourceName,
		LeaderElectionNamespace: config.LeaderElection.ResourceNamespace,
		Metrics:                 metricsserver.Options{BindAddress: config.Metrics.BindAddress},
		HealthProbeBindAddress:  config.Health.HealthProbeBindAddress,
	}

	// Create the manager
	manager, err := ctrl.NewManager(ctrl.GetConfigOrDie(), options)
	if err != nil {
		logger.Fatal("unable to create manager", zap.Error(err))
	}

	// Create the DNS gateway and the node controller
	gateway := provider.NewLinode(provider.LinodeOptions{
		Token:    config.Provider.Token,
		Domain:   config.DNS.Domain,
		Timeout:  config.Provider.Timeout.Duration,
		QPS:      config.Provider.QPS,
		Burst:    config.Provider.Burst,
		PageSize: config.Provider.PageSize,
	}, logger)
	controller := controllers.NewNodeReconciler(
		manager.GetClient(), logger, gateway, manager.GetEventRecorderFor("node-dns"), config,
	)
	if err := controller.SetupWithManager(manager); err != nil {
		logger.Fatal("unable to start node controller", zap.Error(err))
	}

	// Add health check endpoints
	if err := manager.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		logger.Fatal("unable to set up ready check at /readyz", zap.Error(err))
	}
	if err := manager.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		logger.Fatal("unable to set up health check at /healthz", zap.Error(err))
	}

	// Start the manager
	logger.Info("launching manager", zap.String("domain", config.DNS.Domain))
	if err := manager.Start(ctrl.SetupSignalHandler()); err != nil {
		logger.Fatal("failed to run manager", zap.Error(err))
	}
	logger.Info("gracefully shut down")
}
