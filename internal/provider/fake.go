package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/haimgel/node-dns/internal/dns"
)

// Fake is an in-memory DNS provider for tests. It assigns incrementing record IDs, counts
// calls per operation and can be instructed to fail individual operations. All methods are
// safe for concurrent use.
type Fake struct {
	mutex    sync.Mutex
	nextID   int
	records  []dns.Record
	calls    map[string]int
	failures map[string]error
}

// NewFake returns a fake provider pre-populated with the given records. IDs on the given
// records are overwritten with freshly assigned ones.
func NewFake(existing ...dns.Record) *Fake {
	fake := &Fake{nextID: 1, calls: map[string]int{}, failures: map[string]error{}}
	for _, record := range existing {
		record.ID = fake.nextID
		fake.nextID++
		fake.records = append(fake.records, record)
	}
	return fake
}

// FailWith makes the given operation ("list", "create", "update" or "delete") return the
// given error until reset with a nil error. The failing call is still counted.
func (f *Fake) FailWith(operation string, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err == nil {
		delete(f.failures, operation)
	} else {
		f.failures[operation] = err
	}
}

// ListRecords returns a snapshot of all records.
func (f *Fake) ListRecords(ctx context.Context) ([]dns.Record, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls["list"]++
	if err := f.failures["list"]; err != nil {
		return nil, err
	}
	return f.snapshot(), nil
}

// CreateRecord stores the given record under a fresh ID.
func (f *Fake) CreateRecord(ctx context.Context, record dns.Record) (dns.Record, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls["create"]++
	if err := f.failures["create"]; err != nil {
		return dns.Record{}, err
	}
	record.ID = f.nextID
	f.nextID++
	f.records = append(f.records, record)
	return record, nil
}

// UpdateRecord rewrites the record with the given ID, returning a ConflictError when no such
// record exists.
func (f *Fake) UpdateRecord(ctx context.Context, id int, record dns.Record) (dns.Record, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls["update"]++
	if err := f.failures["update"]; err != nil {
		return dns.Record{}, err
	}
	for i, existing := range f.records {
		if existing.ID == id {
			record.ID = id
			f.records[i] = record
			return record, nil
		}
	}
	return dns.Record{}, &ConflictError{Err: fmt.Errorf("record %d does not exist", id)}
}

// DeleteRecord removes the record with the given ID. Unknown IDs are a success, mirroring
// the gateway contract.
func (f *Fake) DeleteRecord(ctx context.Context, id int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls["delete"]++
	if err := f.failures["delete"]; err != nil {
		return err
	}
	for i, existing := range f.records {
		if existing.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// Records returns a snapshot of all records currently stored.
func (f *Fake) Records() []dns.Record {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.snapshot()
}

// Calls returns how often the given operation has been invoked.
func (f *Fake) Calls(operation string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls[operation]
}

// TotalCalls returns how often any operation has been invoked.
func (f *Fake) TotalCalls() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	total := 0
	for _, count := range f.calls {
		total += count
	}
	return total
}

func (f *Fake) snapshot() []dns.Record {
	records := make([]dns.Record, len(f.records))
	copy(records, f.records)
	return records
}
