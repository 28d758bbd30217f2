package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/adfatigue-monitor/internal/pkg/distlock"
)

// DefaultScanInterval is how often the scanner sweeps every account.
const DefaultScanInterval = 6 * time.Hour

// scanLockTTL bounds how long a crashed host can hold the scan lock.
const scanLockTTL = 30 * time.Minute

// AccountLister enumerates the accounts a full sweep covers.
type AccountLister interface {
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// AccountScanner runs the batch analysis across all accounts on a recurring
// schedule. A distributed lock ensures only one host sweeps at a time; other
// hosts skip the tick and retry on the next one.
type AccountScanner struct {
	batch       *BatchAnalyzer
	accounts    AccountLister
	db          *sql.DB
	redisClient *redis.Client // optional; nil falls back to PG advisory locks
	interval    time.Duration
	hostID      string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewAccountScanner creates a scanner over a batch analyzer.
func NewAccountScanner(batch *BatchAnalyzer, accounts AccountLister, db *sql.DB) *AccountScanner {
	hostname, _ := os.Hostname()
	return &AccountScanner{
		batch:    batch,
		accounts: accounts,
		db:       db,
		interval: DefaultScanInterval,
		hostID:   fmt.Sprintf("scanner-%s-%d", hostname, time.Now().UnixNano()%10000),
	}
}

// SetRedisClient enables Redis-based scan locking; without it the scanner
// uses PostgreSQL advisory locks.
func (a *AccountScanner) SetRedisClient(client *redis.Client) {
	a.redisClient = client
}

// SetInterval overrides the sweep interval.
func (a *AccountScanner) SetInterval(d time.Duration) {
	if d > 0 {
		a.interval = d
	}
}

// Start begins the recurring sweep loop.
func (a *AccountScanner) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("scanner already running")
	}
	a.running = true
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.wg.Add(1)
	go a.loop()

	log.Printf("[scanner] %s started, interval %v", a.hostID, a.interval)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to drain.
func (a *AccountScanner) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.cancel()
	a.mu.Unlock()

	a.wg.Wait()
	log.Printf("[scanner] %s stopped", a.hostID)
}

func (a *AccountScanner) loop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.sweep()
		}
	}
}

// sweep runs one full pass over every account, guarded by the distributed
// lock. Accounts run strictly sequentially; per-account parallelism lives
// inside the batch analyzer.
func (a *AccountScanner) sweep() {
	lock := distlock.NewLock(a.redisClient, a.db, "fatigue:account-scan", scanLockTTL)
	acquired, err := lock.Acquire(a.ctx)
	if err != nil {
		log.Printf("[scanner] lock acquire failed: %v", err)
		return
	}
	if !acquired {
		log.Printf("[scanner] another host holds the scan lock, skipping tick")
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil {
			log.Printf("[scanner] lock release failed: %v", err)
		}
	}()

	accountIDs, err := a.accounts.ListAccountIDs(a.ctx)
	if err != nil {
		log.Printf("[scanner] list accounts failed: %v", err)
		return
	}

	log.Printf("[scanner] sweeping %d accounts", len(accountIDs))
	for _, accountID := range accountIDs {
		if a.ctx.Err() != nil {
			return
		}
		summary, _, err := a.batch.RunAccountScan(a.ctx, accountID)
		if err != nil {
			log.Printf("[scanner] account %s scan failed: %v", accountID, err)
			continue
		}
		if summary.Alerts > 0 {
			log.Printf("[scanner] account %s raised %d urgent alerts", accountID, summary.Alerts)
		}
	}
}
