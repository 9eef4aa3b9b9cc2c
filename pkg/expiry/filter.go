package expiry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harveywai/expirywatch/pkg/actions"
)

// Filter checks domains and keeps those with fewer than MinimumLeftDays remaining.
type Filter struct {
	Lookup          Lookup
	MinimumLeftDays int
	// Workers bounds concurrent lookups. Zero or one runs sequentially.
	Workers int
	Now     func() time.Time
	Log     *actions.Logger
}

type checkResult struct {
	record Record
	ok     bool
}

// Check resolves a single domain without applying the threshold. An expired
// certificate yields the sentinel record and no error.
func (f *Filter) Check(ctx context.Context, domain string) (Record, error) {
	expiry, err := f.Lookup.ExpiryDate(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrCertificateExpired) {
			return Record{Domain: domain, DaysLeft: ExpiredDaysLeft, ExpireDate: InvalidExpireDate}, nil
		}
		return Record{}, err
	}

	return Record{
		Domain:     domain,
		DaysLeft:   DaysLeft(expiry, f.now()),
		ExpireDate: FormatDate(expiry),
	}, nil
}

// Run checks every domain and returns the records below the threshold, in input
// order. Failed lookups are logged and skipped.
func (f *Filter) Run(ctx context.Context, domains []string) []Record {
	results := make([]checkResult, len(domains))

	if f.Workers <= 1 {
		for i, d := range domains {
			results[i] = f.checkOne(ctx, d)
		}
	} else {
		f.runPool(ctx, domains, results)
	}

	var records []Record
	for _, r := range results {
		if r.ok && f.Below(r.record) {
			records = append(records, r.record)
		}
	}
	return records
}

// Below reports whether a record falls under the threshold. Equal is not below.
func (f *Filter) Below(r Record) bool {
	return r.DaysLeft < f.MinimumLeftDays
}

// runPool distributes lookups over a fixed worker pool. Each worker writes into
// its own slot, so no locking is needed on results.
func (f *Filter) runPool(ctx context.Context, domains []string, results []checkResult) {
	jobs := make(chan int, len(domains))
	var wg sync.WaitGroup

	for i := 0; i < f.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = f.checkOne(ctx, domains[idx])
			}
		}()
	}

	for i := range domains {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (f *Filter) checkOne(ctx context.Context, domain string) checkResult {
	rec, err := f.Check(ctx, domain)
	if err != nil {
		f.Log.Warningf("lookup failed for %s: %v", domain, err)
		return checkResult{}
	}
	f.Log.Debugf("%s: %d days left (%s)", rec.Domain, rec.DaysLeft, rec.ExpireDate)
	return checkResult{record: rec, ok: true}
}

func (f *Filter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
