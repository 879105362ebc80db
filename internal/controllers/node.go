package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	configv1 "github.com/haimgel/node-dns/internal/config/v1"
	"github.com/haimgel/node-dns/internal/dns"
	"github.com/haimgel/node-dns/internal/ext"
	"github.com/haimgel/node-dns/internal/k8s"
	"github.com/haimgel/node-dns/internal/metrics"
	"github.com/haimgel/node-dns/internal/provider"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/workqueue"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// Finalizer blocks node deletion until the node's DNS records have been removed.
const Finalizer = "k8s.haim.dev/linode-dns-finalizer"

// Configuration errors keep failing until an operator steps in. The first few attempts are
// logged at warning level, everything beyond escalates to an error.
const fatalWarnAttempts = 2

// NodeReconciler keeps the records of the configured DNS domain in sync with the nodes of the
// cluster: every node gets a forward record for its hostname and a reverse record for its IP
// address, and both are removed again before the node is allowed to vanish.
type NodeReconciler struct {
	client.Client
	logger      *zap.Logger
	dns         provider.DNS
	recorder    record.EventRecorder
	domain      string
	ttl         int
	addressType corev1.NodeAddressType
	reconcile   configv1.ReconcileConfig

	// synced remembers the address that each node was last converged with so that steady-state
	// passes finish without any provider traffic. Entries expire so remote drift is re-checked.
	synced *ttlcache.Cache[string, k8s.NodeAddress]

	// failures counts consecutive configuration failures per node for severity escalation.
	mutex    sync.Mutex
	failures map[string]int
}

// NewNodeReconciler creates a new NodeReconciler.
func NewNodeReconciler(
	ctrlClient client.Client, logger *zap.Logger, dnsProvider provider.DNS,
	recorder record.EventRecorder, config configv1.Config,
) *NodeReconciler {
	synced := ttlcache.New[string, k8s.NodeAddress](
		ttlcache.WithTTL[string, k8s.NodeAddress](config.DNS.SyncCacheTTL.Duration),
		ttlcache.WithDisableTouchOnHit[string, k8s.NodeAddress](),
	)
	go synced.Start()

	return &NodeReconciler{
		Client:      ctrlClient,
		logger:      logger,
		dns:         dnsProvider,
		recorder:    recorder,
		domain:      config.DNS.Domain,
		ttl:         config.DNS.TTL,
		addressType: corev1.NodeAddressType(config.DNS.AddressType),
		reconcile:   config.Reconcile,
		synced:      synced,
		failures:    map[string]int{},
	}
}

// Reconcile is part of the main kubernetes reconciliation loop which aims to
// move the current state of the cluster closer to the desired state.
func (r *NodeReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := r.logger.With(zap.String("node", req.Name))
	start := time.Now()

	// First, we retrieve the full node object
	var node corev1.Node
	if err := r.Get(ctx, req.NamespacedName, &node); err != nil {
		if apierrs.IsNotFound(err) {
			// The node is gone entirely, any state kept for it is obsolete
			r.forget(req.Name)
			return ctrl.Result{}, nil
		}
		logger.Error("unable to query for node", zap.Error(err))
		return ctrl.Result{}, err
	}

	// Then, the node's lifecycle phase decides what has to happen. A node that is being
	// deleted without carrying our finalizer is none of our business.
	var outcome string
	var err error
	switch {
	case node.DeletionTimestamp.IsZero():
		outcome, err = r.converge(ctx, &node, logger)
	case controllerutil.ContainsFinalizer(&node, Finalizer):
		outcome, err = r.finalize(ctx, &node, logger)
	default:
		logger.Debug("ignoring node deleted by others")
		r.forget(req.Name)
		return ctrl.Result{}, nil
	}

	if err != nil {
		// The next pass must not trust any previously synced state
		r.synced.Delete(req.Name)
		metrics.ObserveReconciliation(metrics.OutcomeFailed, time.Since(start))
		return r.scheduleRetry(&node, logger, err)
	}
	r.clearFailures(req.Name)
	metrics.ObserveReconciliation(outcome, time.Since(start))
	return ctrl.Result{}, nil
}

// converge brings the provider's records for a live node in line with the node's current
// addresses. The returned outcome feeds the reconciliation metrics.
func (r *NodeReconciler) converge(
	ctx context.Context, node *corev1.Node, logger *zap.Logger,
) (string, error) {
	// Nodes commonly register before the cloud provider assigns their addresses. This is not
	// an error: the address assignment triggers another watch event and we simply run again.
	address, err := k8s.ResolveNodeAddress(node, r.addressType)
	if err != nil {
		if errors.Is(err, k8s.ErrNoAddressAvailable) {
			logger.Debug("node does not have a usable address yet")
			return metrics.OutcomeSkipped, nil
		}
		return "", err
	}
	logger = logger.With(
		zap.String("hostname", address.Hostname), zap.String("ip", address.IP.String()),
	)

	// If the node was already converged with exactly this address, we are done without
	// talking to the provider at all. The cache entry expires eventually, at which point the
	// remote records are verified again.
	if item := r.synced.Get(node.Name); item != nil && item.Value() == address &&
		controllerutil.ContainsFinalizer(node, Finalizer) {
		logger.Debug("node is already up to date")
		return metrics.OutcomeCached, nil
	}

	// The finalizer must be in place before the first record is written: a crash in between
	// must never leave records behind that no deletion event cleans up.
	if err := k8s.EnsureFinalizer(ctx, r.Client, node, Finalizer); err != nil {
		return "", err
	}

	desired := dns.Desired(address.Hostname, address.IP, r.domain, r.ttl)
	existing, err := r.dns.ListRecords(ctx)
	if err != nil {
		return "", err
	}
	for _, want := range desired.All() {
		if err := r.convergeRecord(ctx, want, existing, logger); err != nil {
			return "", err
		}
	}

	r.synced.Set(node.Name, address, ttlcache.DefaultTTL)
	logger.Info("node records are up to date")
	return metrics.OutcomeConverged, nil
}

// convergeRecord ensures that the given desired record exists remotely: missing records are
// created, records with outdated contents are rewritten in place and matching records are left
// alone. When the provider holds several records with the desired name and type, the first one
// is treated as authoritative and the surplus ones are reported but never touched.
func (r *NodeReconciler) convergeRecord(
	ctx context.Context, desired dns.Record, existing []dns.Record, logger *zap.Logger,
) error {
	var found []dns.Record
	for _, remote := range existing {
		if strings.EqualFold(remote.Name, desired.Name) && remote.Type == desired.Type {
			found = append(found, remote)
		}
	}

	if len(found) == 0 {
		created, err := r.dns.CreateRecord(ctx, desired)
		if err != nil {
			return fmt.Errorf("failed to create record %q: %w", desired.Name, err)
		}
		logger.Info("created record",
			zap.String("record", desired.Name), zap.String("type", string(desired.Type)),
			zap.Int("id", created.ID),
		)
		return nil
	}
	if len(found) > 1 {
		logger.Warn("found duplicate records, leaving surplus ones untouched",
			zap.String("record", desired.Name), zap.String("type", string(desired.Type)),
			zap.Ints("surplusIds", ext.Map(found[1:], func(dup dns.Record) int { return dup.ID })),
		)
	}

	current := found[0]
	if dns.Matches(current, desired) {
		return nil
	}
	if _, err := r.dns.UpdateRecord(ctx, current.ID, desired); err != nil {
		// The record vanished between listing and rewriting it, create it from scratch
		if !provider.IsConflict(err) {
			return fmt.Errorf("failed to update record %q: %w", desired.Name, err)
		}
		created, err := r.dns.CreateRecord(ctx, desired)
		if err != nil {
			return fmt.Errorf("failed to recreate vanished record %q: %w", desired.Name, err)
		}
		logger.Info("recreated vanished record",
			zap.String("record", desired.Name), zap.Int("id", created.ID),
		)
		return nil
	}
	logger.Info("updated record",
		zap.String("record", desired.Name), zap.String("type", string(desired.Type)),
		zap.Int("id", current.ID), zap.String("target", desired.Target),
	)
	return nil
}

// finalize removes all records of a node that is being deleted and releases the finalizer
// afterwards. The order is load-bearing: releasing the finalizer first could complete the node
// deletion while records are still left behind.
func (r *NodeReconciler) finalize(
	ctx context.Context, node *corev1.Node, logger *zap.Logger,
) (string, error) {
	// The finalizer is only ever added after the addresses resolved once, so failing here
	// means they were stripped while the node was live. Record names cannot be derived from
	// guesses, the node is kept until the addresses reappear or an operator intervenes.
	address, err := k8s.ResolveNodeAddress(node, r.addressType)
	if err != nil {
		return "", fmt.Errorf("cannot derive record names for node being deleted: %w", err)
	}

	// Everything under the node's two names is removed, surplus duplicates included. Deletes
	// are idempotent, so records that are already gone do not fail the pass.
	desired := dns.Desired(address.Hostname, address.IP, r.domain, r.ttl)
	existing, err := r.dns.ListRecords(ctx)
	if err != nil {
		return "", err
	}
	deleted := 0
	for _, remote := range existing {
		if !strings.EqualFold(remote.Name, desired.Forward.Name) &&
			!strings.EqualFold(remote.Name, desired.Reverse.Name) {
			continue
		}
		if err := r.dns.DeleteRecord(ctx, remote.ID); err != nil {
			return "", fmt.Errorf("failed to delete record %q: %w", remote.Name, err)
		}
		logger.Info("deleted record",
			zap.String("record", remote.Name), zap.String("type", string(remote.Type)),
			zap.Int("id", remote.ID),
		)
		deleted++
	}

	// Only now may the node deletion complete
	if err := k8s.RemoveFinalizer(ctx, r.Client, node, Finalizer); err != nil {
		return "", err
	}
	r.forget(node.Name)
	r.recorder.Eventf(node, corev1.EventTypeNormal, "CleanedRecords",
		"Deleted %d DNS record(s) for %s", deleted, desired.Forward.Name)
	logger.Info("cleaned up node records", zap.Int("deleted", deleted))
	return metrics.OutcomeTerminated, nil
}

// scheduleRetry turns a failed reconciliation attempt into the appropriate retry behavior for
// its error class. Transient failures surface as errors and go through the work queue's
// exponential backoff, throttling waits exactly as long as the provider asked for, and
// configuration problems are retried on a fixed, slow interval so they cannot hot-loop.
func (r *NodeReconciler) scheduleRetry(
	node *corev1.Node, logger *zap.Logger, err error,
) (ctrl.Result, error) {
	if wait, ok := provider.IsRateLimited(err); ok && wait > 0 {
		logger.Info("provider throttled reconciliation", zap.Duration("retryAfter", wait))
		return ctrl.Result{RequeueAfter: wait}, nil
	}

	if provider.IsAuthError(err) || provider.IsNotFound(err) {
		failures := r.bumpFailures(node.Name)
		if failures <= fatalWarnAttempts {
			logger.Warn("provider configuration problem",
				zap.Int("attempts", failures), zap.Error(err))
		} else {
			logger.Error("provider configuration problem persists, operator attention required",
				zap.Int("attempts", failures), zap.Error(err))
		}
		r.recorder.Eventf(node, corev1.EventTypeWarning, "ProviderConfigError",
			"DNS records cannot be reconciled: %v", err)
		return ctrl.Result{RequeueAfter: r.reconcile.FatalRetryDelay.Duration}, nil
	}

	if errors.Is(err, k8s.ErrNoAddressAvailable) {
		logger.Warn("keeping finalizer on node without addresses", zap.Error(err))
		return ctrl.Result{}, err
	}

	logger.Error("failed to reconcile node", zap.Error(err))
	return ctrl.Result{}, err
}

// SetupWithManager sets up the controller with the Manager.
func (r *NodeReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		Named("node-dns").
		For(&corev1.Node{}).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: r.reconcile.Workers,
			RateLimiter: workqueue.NewTypedItemExponentialFailureRateLimiter[reconcile.Request](
				r.reconcile.RetryBaseDelay.Duration, r.reconcile.RetryMaxDelay.Duration,
			),
		}).
		Complete(r)
}

//----------------------------------------- UTILS ------------------------------------------------

// forget drops all per-node state, used whenever a node leaves this controller's
// responsibility.
func (r *NodeReconciler) forget(name string) {
	r.synced.Delete(name)
	r.clearFailures(name)
}

func (r *NodeReconciler) bumpFailures(name string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.failures[name]++
	return r.failures[name]
}

func (r *NodeReconciler) clearFailures(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.failures, name)
}
