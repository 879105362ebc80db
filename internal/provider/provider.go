package provider

import (
	"context"

	"github.com/haimgel/node-dns/internal/dns"
)

// DNS is the gateway to the record API of a single DNS domain hosted at the provider. All
// methods perform exactly one attempt: retry scheduling is the caller's responsibility, never
// the gateway's. Failures are reported through the error types of this package.
type DNS interface {
	// ListRecords returns every record of the domain. Pagination is followed until the full
	// set has been assembled, a partial listing is never returned.
	ListRecords(ctx context.Context) ([]dns.Record, error)

	// CreateRecord creates the given record and returns it with its provider-assigned ID.
	CreateRecord(ctx context.Context, record dns.Record) (dns.Record, error)

	// UpdateRecord rewrites the record with the given ID to carry the given name, type,
	// target and TTL. If the record does not exist remotely anymore, a ConflictError is
	// returned and the caller may recover by creating the record from scratch.
	UpdateRecord(ctx context.Context, id int, record dns.Record) (dns.Record, error)

	// DeleteRecord removes the record with the given ID. Deleting a record that does not
	// exist remotely is a success: the record being gone is the desired outcome.
	DeleteRecord(ctx context.Context, id int) error
}
