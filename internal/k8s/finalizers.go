package k8s

import (
	"context"
	"fmt"

	apierrs "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

// EnsureFinalizer adds the given finalizer to the object unless it already carries it. The
// update is performed on a freshly fetched copy of the object and conflicts with concurrent
// writers are retried, so the caller's object is refreshed as a side effect.
func EnsureFinalizer(
	ctx context.Context, ctrlClient client.Client, object client.Object, finalizer string,
) error {
	if controllerutil.ContainsFinalizer(object, finalizer) {
		return nil
	}
	key := client.ObjectKeyFromObject(object)
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := ctrlClient.Get(ctx, key, object); err != nil {
			return err
		}
		if !controllerutil.AddFinalizer(object, finalizer) {
			return nil
		}
		return ctrlClient.Update(ctx, object)
	})
	if err != nil {
		return fmt.Errorf("failed to add finalizer: %w", err)
	}
	return nil
}

// RemoveFinalizer removes the given finalizer from the object. An object that is already gone
// counts as success: there is nothing left to unblock. Conflicts with concurrent writers are
// retried on a fresh copy of the object.
func RemoveFinalizer(
	ctx context.Context, ctrlClient client.Client, object client.Object, finalizer string,
) error {
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := ctrlClient.Get(ctx, client.ObjectKeyFromObject(object), object); err != nil {
			return err
		}
		if !controllerutil.RemoveFinalizer(object, finalizer) {
			return nil
		}
		return ctrlClient.Update(ctx, object)
	})
	if err != nil && !apierrs.IsNotFound(err) {
		return fmt.Errorf("failed to remove finalizer: %w", err)
	}
	return nil
}
