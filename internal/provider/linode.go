package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haimgel/node-dns/internal/dns"
	"github.com/haimgel/node-dns/internal/metrics"
	"github.com/jellydator/ttlcache/v3"
	"github.com/linode/linodego"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"k8s.io/client-go/util/flowcontrol"
)

// Looking the domain up by name is cheap but pointless to repeat on every pass. Entries
// expire so a recreated domain with a new ID is picked up eventually.
const domainIDCacheTTL = 30 * time.Minute

// LinodeOptions configures the Linode gateway.
type LinodeOptions struct {
	// Token is the Linode API bearer token.
	Token string
	// Domain is the name of the domain whose records are managed.
	Domain string
	// Timeout bounds every single API call.
	Timeout time.Duration
	// QPS and Burst configure the client-side token bucket that paces API calls.
	QPS   float32
	Burst int
	// PageSize is the number of records requested per listing page.
	PageSize int
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
}

// Linode implements the DNS gateway on top of the Linode domain records API.
type Linode struct {
	client    linodego.Client
	domain    string
	timeout   time.Duration
	pageSize  int
	limiter   flowcontrol.RateLimiter
	domainIDs *ttlcache.Cache[string, int]
	logger    *zap.Logger
}

// NewLinode creates a gateway for the domain configured in the given options.
func NewLinode(options LinodeOptions, logger *zap.Logger) *Linode {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: options.Token})
	client := linodego.NewClient(&http.Client{Transport: &oauth2.Transport{Source: tokenSource}})
	client.SetUserAgent("node-dns")
	// Retrying is the event loop's job, a failed call must surface immediately.
	client.SetRetryCount(0)
	if options.BaseURL != "" {
		client.SetBaseURL(options.BaseURL)
	}

	domainIDs := ttlcache.New[string, int](
		ttlcache.WithTTL[string, int](domainIDCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, int](),
	)
	go domainIDs.Start()

	return &Linode{
		client:    client,
		domain:    options.Domain,
		timeout:   options.Timeout,
		pageSize:  options.PageSize,
		limiter:   flowcontrol.NewTokenBucketRateLimiter(options.QPS, options.Burst),
		domainIDs: domainIDs,
		logger:    logger,
	}
}

// ListRecords returns every record of the domain, following pagination until exhaustion.
func (l *Linode) ListRecords(ctx context.Context) ([]dns.Record, error) {
	domainID, err := l.domainID(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]dns.Record, 0)
	options := linodego.NewListOptions(1, "")
	options.PageSize = l.pageSize
	for {
		page, err := l.listRecordPage(ctx, domainID, options)
		if err != nil {
			return nil, err
		}
		for _, record := range page {
			records = append(records, fromLinodeRecord(record))
		}
		if options.Pages == 0 || options.Page >= options.Pages {
			return records, nil
		}
		options.Page++
	}
}

// CreateRecord creates the given record and returns it with its provider-assigned ID.
func (l *Linode) CreateRecord(ctx context.Context, record dns.Record) (dns.Record, error) {
	domainID, err := l.domainID(ctx)
	if err != nil {
		return dns.Record{}, err
	}

	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	l.limiter.Accept()
	created, err := l.client.CreateDomainRecord(callCtx, domainID, linodego.DomainRecordCreateOptions{
		Type:   linodego.DomainRecordType(record.Type),
		Name:   record.Name,
		Target: record.Target,
		TTLSec: record.TTL,
	})
	metrics.ObserveProviderRequest("create", err)
	if err != nil {
		return dns.Record{}, l.normalize("create record", err)
	}
	l.logger.Debug("created record",
		zap.String("name", record.Name), zap.String("type", string(record.Type)), zap.Int("id", created.ID))
	return fromLinodeRecord(*created), nil
}

// UpdateRecord rewrites the record with the given ID. A record that vanished remotely yields
// a ConflictError so the caller can recover by creating it from scratch.
func (l *Linode) UpdateRecord(ctx context.Context, id int, record dns.Record) (dns.Record, error) {
	domainID, err := l.domainID(ctx)
	if err != nil {
		return dns.Record{}, err
	}

	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	l.limiter.Accept()
	updated, err := l.client.UpdateDomainRecord(callCtx, domainID, id, linodego.DomainRecordUpdateOptions{
		Type:   linodego.DomainRecordType(record.Type),
		Name:   record.Name,
		Target: record.Target,
		TTLSec: record.TTL,
	})
	metrics.ObserveProviderRequest("update", err)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return dns.Record{}, &ConflictError{Err: fmt.Errorf("failed to update record %d: %w", id, err)}
		}
		return dns.Record{}, l.normalize("update record", err)
	}
	l.logger.Debug("updated record",
		zap.String("name", record.Name), zap.String("type", string(record.Type)), zap.Int("id", id))
	return fromLinodeRecord(*updated), nil
}

// DeleteRecord removes the record with the given ID. Deleting a record the provider does not
// know anymore is a success.
func (l *Linode) DeleteRecord(ctx context.Context, id int) error {
	domainID, err := l.domainID(ctx)
	if err != nil {
		return err
	}

	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	l.limiter.Accept()
	err = l.client.DeleteDomainRecord(callCtx, domainID, id)
	metrics.ObserveProviderRequest("delete", err)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil
		}
		return l.normalize("delete record", err)
	}
	l.logger.Debug("deleted record", zap.Int("id", id))
	return nil
}

//----------------------------------------- UTILS ------------------------------------------------

func (l *Linode) listRecordPage(
	ctx context.Context, domainID int, options *linodego.ListOptions,
) ([]linodego.DomainRecord, error) {
	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	l.limiter.Accept()
	page, err := l.client.ListDomainRecords(callCtx, domainID, options)
	metrics.ObserveProviderRequest("list", err)
	if err != nil {
		return nil, l.normalize("list records", err)
	}
	return page, nil
}

// domainID resolves the configured domain name to Linode's numeric domain ID, consulting the
// cache first. A domain that does not exist yields a NotFoundError.
func (l *Linode) domainID(ctx context.Context) (int, error) {
	if item := l.domainIDs.Get(l.domain); item != nil {
		return item.Value(), nil
	}

	filter, err := json.Marshal(map[string]string{"domain": l.domain})
	if err != nil {
		return 0, fmt.Errorf("failed to build domain filter: %w", err)
	}
	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	l.limiter.Accept()
	domains, err := l.client.ListDomains(callCtx, linodego.NewListOptions(0, string(filter)))
	metrics.ObserveProviderRequest("domains", err)
	if err != nil {
		return 0, l.normalize("list domains", err)
	}
	for _, domain := range domains {
		if strings.EqualFold(domain.Domain, l.domain) {
			l.domainIDs.Set(l.domain, domain.ID, ttlcache.DefaultTTL)
			return domain.ID, nil
		}
	}
	return 0, &NotFoundError{Domain: l.domain}
}

func (l *Linode) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

// normalize maps a linodego error onto the error taxonomy of this package. Call sites handle
// operation-specific 404 semantics before calling normalize, so a 404 reaching this function
// means the domain itself went away and the cached ID must not be trusted anymore.
func (l *Linode) normalize(operation string, err error) error {
	wrapped := fmt.Errorf("failed to %s: %w", operation, err)
	var apiErr *linodego.Error
	if !errors.As(err, &apiErr) {
		return &UnavailableError{Err: wrapped}
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return &AuthError{Err: wrapped}
	case apiErr.Code == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: retryAfterHint(apiErr.Response), Err: wrapped}
	case apiErr.Code == http.StatusNotFound:
		l.domainIDs.Delete(l.domain)
		return &NotFoundError{Domain: l.domain, Err: wrapped}
	case apiErr.Code >= http.StatusInternalServerError:
		return &UnavailableError{Err: wrapped}
	}
	return wrapped
}

func statusCode(err error) int {
	var apiErr *linodego.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func retryAfterHint(response *http.Response) time.Duration {
	if response == nil {
		return 0
	}
	seconds, err := strconv.Atoi(response.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func fromLinodeRecord(record linodego.DomainRecord) dns.Record {
	return dns.Record{
		ID:     record.ID,
		Name:   record.Name,
		Type:   dns.RecordType(record.Type),
		Target: record.Target,
		TTL:    record.TTLSec,
	}
}
