package k8tests

import (
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

// NewScheme returns a newly configured scheme which registers all types that are relevant for
// this controller. Nodes are core types, so the client-go scheme is all it takes.
func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	return scheme
}

// NewClient returns a fake cluster client tracking the given objects. The fake client honors
// finalizer semantics: deleting an object with finalizers sets its deletion timestamp and the
// object only goes away once the last finalizer is removed.
func NewClient(scheme *runtime.Scheme, objects ...client.Object) client.Client {
	return fake.NewClientBuilder().WithScheme(scheme).WithObjects(objects...).Build()
}
