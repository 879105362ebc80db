package k8s

import (
	"context"
	"testing"

	"github.com/haimgel/node-dns/internal/k8tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

const testFinalizer = "k8s.haim.dev/test-finalizer"

func TestEnsureFinalizer(t *testing.T) {
	ctx := context.Background()
	node := k8tests.DummyNode("node1", "node1", "192.0.2.10")
	client := k8tests.NewClient(k8tests.NewScheme(), &node)

	require.NoError(t, EnsureFinalizer(ctx, client, &node, testFinalizer))
	assert.True(t, controllerutil.ContainsFinalizer(&node, testFinalizer))

	// Adding twice keeps a single entry
	require.NoError(t, EnsureFinalizer(ctx, client, &node, testFinalizer))
	require.NoError(t, client.Get(ctx, types.NamespacedName{Name: "node1"}, &node))
	assert.Equal(t, node.Finalizers, []string{testFinalizer})
}

func TestEnsureFinalizerRefreshesStaleObject(t *testing.T) {
	ctx := context.Background()
	node := k8tests.DummyNode("node1", "node1", "192.0.2.10")
	client := k8tests.NewClient(k8tests.NewScheme(), &node)

	// Another writer bumps the object after we fetched it
	fresh := node.DeepCopy()
	fresh.Labels = map[string]string{"touched": "true"}
	require.NoError(t, client.Update(ctx, fresh))

	// The stale copy still ends up with the finalizer
	require.NoError(t, EnsureFinalizer(ctx, client, &node, testFinalizer))
	require.NoError(t, client.Get(ctx, types.NamespacedName{Name: "node1"}, &node))
	assert.Contains(t, node.Finalizers, testFinalizer)
	assert.Equal(t, node.Labels["touched"], "true")
}

func TestRemoveFinalizer(t *testing.T) {
	ctx := context.Background()
	node := k8tests.DummyNode("node1", "node1", "192.0.2.10")
	node.Finalizers = []string{testFinalizer}
	client := k8tests.NewClient(k8tests.NewScheme(), &node)

	require.NoError(t, RemoveFinalizer(ctx, client, &node, testFinalizer))
	require.NoError(t, client.Get(ctx, types.NamespacedName{Name: "node1"}, &node))
	assert.Empty(t, node.Finalizers)

	// Removing again is a no-op
	assert.NoError(t, RemoveFinalizer(ctx, client, &node, testFinalizer))
}

func TestRemoveFinalizerGoneObject(t *testing.T) {
	ctx := context.Background()
	node := k8tests.DummyNode("node1", "node1", "192.0.2.10")
	node.Finalizers = []string{testFinalizer}
	client := k8tests.NewClient(k8tests.NewScheme())

	// The node was never tracked, removal must still succeed
	assert.NoError(t, RemoveFinalizer(ctx, client, &node, testFinalizer))
}

func TestRemoveFinalizerUnblocksDeletion(t *testing.T) {
	ctx := context.Background()
	node := k8tests.DummyNode("node1", "node1", "192.0.2.10")
	node.Finalizers = []string{testFinalizer}
	client := k8tests.NewClient(k8tests.NewScheme(), &node)

	require.NoError(t, client.Delete(ctx, &node))
	require.NoError(t, client.Get(ctx, types.NamespacedName{Name: "node1"}, &node))
	require.False(t, node.DeletionTimestamp.IsZero())

	require.NoError(t, RemoveFinalizer(ctx, client, &node, testFinalizer))
	err := client.Get(ctx, types.NamespacedName{Name: "node1"}, &node)
	assert.True(t, apierrs.IsNotFound(err))
}
